// Package ntlm builds the NTLMSSP NEGOTIATE_MESSAGE (type 1) this client
// sends during SESSION_SETUP_ANDX. The microSD Management server accepts
// any syntactically valid NEGOTIATE blob and never challenges it further
// (spec.md §4.2 step 4, §9), so this package stops at type 1: no
// CHALLENGE/AUTHENTICATE handling, no NTLMv2 response computation.
package ntlm

import "encoding/binary"

// Signature is the fixed NTLMSSP magic every message starts with.
var Signature = []byte("NTLMSSP\x00")

// Message types (MS-NLMP 2.2).
const (
	MessageTypeNegotiate = 0x00000001
)

// Negotiate flags this client advertises (MS-NLMP 2.2.2.5), the subset
// meaningful for a type 1 message with no domain/workstation supplied.
const (
	NegotiateUnicode           uint32 = 1 << 0
	NegotiateOEM               uint32 = 1 << 1
	RequestTarget              uint32 = 1 << 2
	NegotiateSign              uint32 = 1 << 4
	NegotiateNTLM              uint32 = 1 << 9
	NegotiateAlwaysSign        uint32 = 1 << 15
	NegotiateExtendedSecurity  uint32 = 1 << 19
	Negotiate128               uint32 = 1 << 29
	Negotiate56                uint32 = 1 << 31
)

// defaultFlags mirrors what real SMB1 clients advertise for an
// anonymous/unauthenticated NTLMSSP negotiation: Unicode strings,
// extended session security, and no domain/workstation fields supplied.
const defaultFlags = NegotiateUnicode | RequestTarget | NegotiateNTLM |
	NegotiateSign | NegotiateAlwaysSign | NegotiateExtendedSecurity |
	Negotiate128 | Negotiate56

// BuildNegotiateMessage builds an NTLMSSP type 1 NEGOTIATE_MESSAGE with
// empty domain and workstation fields (MS-NLMP 2.2.1.1). The message is
// fixed size; DomainNameLen/WorkstationLen are zero so no trailing
// payload is needed.
func BuildNegotiateMessage() []byte {
	const size = 32
	buf := make([]byte, size)
	copy(buf[0:8], Signature)
	le := binary.LittleEndian
	le.PutUint32(buf[8:12], MessageTypeNegotiate)
	le.PutUint32(buf[12:16], defaultFlags)
	// DomainNameFields (len=0, maxlen=0, offset=size)
	le.PutUint16(buf[16:18], 0)
	le.PutUint16(buf[18:20], 0)
	le.PutUint32(buf[20:24], size)
	// WorkstationFields (len=0, maxlen=0, offset=size)
	le.PutUint16(buf[24:26], 0)
	le.PutUint16(buf[26:28], 0)
	le.PutUint32(buf[28:32], size)
	return buf
}
