package smb1

import (
	"encoding/binary"
	"fmt"
)

// Dialect is the single dialect string this client offers, per spec.md
// §4.2 step 3. The server is expected to select index 0.
const Dialect = "NT LM 0.12"

// BuildNegotiateRequestData builds the SMB_COM_NEGOTIATE request data
// block: a single dialect string prefixed with BufferFormatDialect and
// null-terminated.
func BuildNegotiateRequestData() []byte {
	buf := make([]byte, 0, len(Dialect)+2)
	buf = append(buf, BufferFormatDialect)
	buf = append(buf, []byte(Dialect)...)
	buf = append(buf, 0x00)
	return buf
}

// NegotiateResponse is the decoded SMB_COM_NEGOTIATE response this client
// needs: the selected dialect index, the server's max buffer size and its
// security challenge (ignored — the server does not verify credentials).
type NegotiateResponse struct {
	DialectIndex uint16
	SecurityMode uint8
	MaxBufferSize uint32
	Challenge    []byte
}

// ParseNegotiateResponse parses the parameter words and data of an
// SMB_COM_NEGOTIATE response (NT LM 0.12 layout without extended
// security, carrying the server challenge, MS-CIFS 2.2.4.52.2).
func ParseNegotiateResponse(msg *Message) (*NegotiateResponse, error) {
	p := msg.Params
	if len(p) < 2 {
		return nil, fmt.Errorf("smb1: negotiate response missing DialectIndex")
	}
	le := binary.LittleEndian
	resp := &NegotiateResponse{DialectIndex: le.Uint16(p[0:2])}
	if resp.DialectIndex == 0xFFFF {
		return resp, fmt.Errorf("smb1: server rejected all offered dialects")
	}
	const wantLen = 2 + 1 + 2 + 2 + 4 + 4 + 4 + 4 + 8 + 2 + 1 // 34 bytes, non-extended SMB_COM_NEGOTIATE response
	if len(p) < wantLen {
		return resp, fmt.Errorf("smb1: negotiate response parameter words too short: %d bytes", len(p))
	}
	resp.SecurityMode = p[2]
	resp.MaxBufferSize = le.Uint32(p[7:11])
	keyLength := p[33]
	if int(keyLength) > 0 && len(msg.Data) >= int(keyLength) {
		resp.Challenge = append([]byte(nil), msg.Data[:keyLength]...)
	}
	return resp, nil
}
