package smb1

import (
	"encoding/binary"
	"fmt"
)

// TreeConnectAndX flags (MS-CIFS 2.2.4.55.1); this client never uses
// disconnected-tree reconnection or extended responses.
const treeConnectFlags uint16 = 0x0000

// BuildTreeConnectAndXRequest builds the parameter words and data block
// for SMB_COM_TREE_CONNECT_ANDX connecting to path (a UNC path, e.g.
// `\\N3DS\microSD`) with an empty password (the server does not check
// share passwords) and service `?????` (any type), per spec.md §4.2
// step 5.
func BuildTreeConnectAndXRequest(path, service string) (params, data []byte) {
	const password = "\x00" // single null byte, ASCII-encoded empty password

	p := make([]byte, 0, 14)
	p = append(p, AndXNoCommand, 0x00)
	p = putU16(p, 0) // AndXOffset
	p = putU16(p, treeConnectFlags)
	p = putU16(p, uint16(len(password)))

	d := make([]byte, 0, 64)
	d = append(d, []byte(password)...)
	// Path is Unicode and must start on an even offset from the start of
	// the SMB header; one pad byte is added after Password when the path
	// would otherwise start on an odd offset.
	if (HeaderSize+1+len(p)+2+len(d))%2 != 0 {
		d = append(d, 0x00)
	}
	d = append(d, EncodeUTF16LE(path)...)
	d = append(d, []byte(service)...)
	d = append(d, 0x00) // null-terminate the (ASCII) service string

	return p, d
}

// TreeConnectAndXResponse is the decoded response this client needs. The
// TID is read from the response header by the caller, not from this
// block.
type TreeConnectAndXResponse struct {
	OptionalSupport uint16
}

// ParseTreeConnectAndXResponse parses the SMB_COM_TREE_CONNECT_ANDX
// response parameter words.
func ParseTreeConnectAndXResponse(msg *Message) (*TreeConnectAndXResponse, error) {
	p := msg.Params
	if len(p) < 4 {
		return nil, fmt.Errorf("smb1: tree_connect_andx response too short: %d bytes", len(p))
	}
	return &TreeConnectAndXResponse{OptionalSupport: binary.LittleEndian.Uint16(p[2:4])}, nil
}
