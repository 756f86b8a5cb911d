package smb1

import (
	"encoding/binary"
	"fmt"
)

// BuildEchoRequest builds the parameter words and data block for
// SMB_COM_ECHO (MS-CIFS 2.2.4.13.1), used by spec.md's keepalive/liveness
// check while a connection sits idle in state READY. echoCount of 1 asks
// the server for a single reply.
func BuildEchoRequest(payload []byte) (params, data []byte) {
	p := make([]byte, 2)
	binary.LittleEndian.PutUint16(p, 1) // EchoCount
	return p, payload
}

// EchoResponse is the decoded SMB_COM_ECHO response: the sequence number
// and the echoed payload.
type EchoResponse struct {
	SequenceNumber uint16
	Data           []byte
}

// ParseEchoResponse parses an SMB_COM_ECHO response.
func ParseEchoResponse(msg *Message) (*EchoResponse, error) {
	p := msg.Params
	if len(p) < 2 {
		return nil, fmt.Errorf("smb1: echo response params too short: %d bytes", len(p))
	}
	return &EchoResponse{
		SequenceNumber: binary.LittleEndian.Uint16(p[0:2]),
		Data:           msg.Data,
	}, nil
}
