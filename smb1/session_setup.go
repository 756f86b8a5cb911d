package smb1

import (
	"encoding/binary"
	"fmt"
)

// Capabilities bits this client advertises at SESSION_SETUP_ANDX.
const (
	CapUnicode        uint32 = 0x00000004
	CapNTSMBs         uint32 = 0x00000008
	CapStatus32       uint32 = 0x00000040
	CapExtendedSecurity uint32 = 0x80000000
)

// BuildSessionSetupAndXRequest builds the parameter words and data block
// for SMB_COM_SESSION_SETUP_ANDX, extended-security variant (MS-CIFS
// 2.2.4.53.1), carrying securityBlob (the SPNEGO NegTokenInit wrapping an
// NTLMSSP Type 1 message, see package ntlm) as the session's credentials.
// The server does not verify the blob's contents per spec.md §4.2 step 4.
func BuildSessionSetupAndXRequest(maxBufferSize uint32, securityBlob []byte) (params, data []byte) {
	const nativeOS = "Unix"
	const nativeLanMan = "n3ds-smb"

	p := make([]byte, 0, 24)
	p = append(p, AndXNoCommand, 0x00) // AndXCommand, AndXReserved
	p = putU16(p, 0)                  // AndXOffset, patched by caller if chained
	p = putU16(p, uint16(maxBufferSize))
	p = putU16(p, 1) // MaxMpxCount
	p = putU16(p, 1) // VcNumber
	p = append(p, 0, 0, 0, 0)                    // SessionKey
	p = putU16(p, uint16(len(securityBlob)))     // SecurityBlobLength
	p = append(p, 0, 0, 0, 0)                    // Reserved
	capsBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(capsBuf, CapUnicode|CapNTSMBs|CapStatus32|CapExtendedSecurity)
	p = append(p, capsBuf...)

	d := make([]byte, 0, len(securityBlob)+64)
	d = append(d, securityBlob...)
	// Pad to an even offset before the Unicode strings: BuildMessage
	// places this data block after the header, WordCount, parameter
	// words and 2-byte ByteCount, so the strings would start at that
	// prefix length plus the blob length; when that offset is odd, one
	// pad byte keeps the following UTF-16LE strings 2-byte aligned.
	if (HeaderSize+1+len(p)+2+len(securityBlob))%2 != 0 {
		d = append(d, 0x00)
	}
	d = append(d, EncodeUTF16LE(nativeOS)...)
	d = append(d, EncodeUTF16LE(nativeLanMan)...)

	return p, d
}

// SessionSetupAndXResponse is the decoded response this client needs: the
// action flags (bit 0 = logged in as guest). The response's security blob
// is not decoded, since the server does not challenge further.
type SessionSetupAndXResponse struct {
	Action uint16
}

// ParseSessionSetupAndXResponse parses the SMB_COM_SESSION_SETUP_ANDX
// response parameter words. The UID is read from the response header by
// the caller, not from this block.
func ParseSessionSetupAndXResponse(msg *Message) (*SessionSetupAndXResponse, error) {
	p := msg.Params
	if len(p) < 6 {
		return nil, fmt.Errorf("smb1: session_setup_andx response too short: %d bytes", len(p))
	}
	return &SessionSetupAndXResponse{Action: binary.LittleEndian.Uint16(p[4:6])}, nil
}
