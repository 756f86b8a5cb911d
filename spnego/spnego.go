// Package spnego builds the GSS-API SPNEGO NegTokenInit this client sends
// as the SecurityBlob in SESSION_SETUP_ANDX, wrapping the NTLMSSP type 1
// message from package ntlm (spec.md §4.2 step 4). Only encoding is
// implemented: the server accepts this blob without validating it and
// never sends a NegTokenResp this client would need to parse.
package spnego

import "github.com/jcmturner/gofork/encoding/asn1"

// oidSPNEGO is the SPNEGO mechanism OID, 1.3.6.1.5.5.2 (RFC 4178).
var oidSPNEGO = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 2}

// oidNTLMSSP is the NTLM Security Support Provider OID,
// 1.3.6.1.4.1.311.2.2.10.
var oidNTLMSSP = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 2, 2, 10}

// negTokenInit is the ASN.1 NegTokenInit structure (RFC 4178 §4.2.1).
type negTokenInit struct {
	MechTypes     []asn1.ObjectIdentifier `asn1:"explicit,tag:0"`
	MechToken     []byte                  `asn1:"explicit,optional,tag:2"`
}

// initialContextToken is the GSS-API InitialContextToken wrapper
// (RFC 2743 §3.1): an APPLICATION 0 tag around the mechanism OID and the
// inner NegotiationToken.
type initialContextToken struct {
	ThisMech asn1.ObjectIdentifier
	Inner    negTokenInitChoice
}

// negTokenInitChoice wraps negTokenInit under the context tag [0], the
// CHOICE arm used for the client's first message (RFC 4178 §4.2).
type negTokenInitChoice struct {
	NegTokenInit negTokenInit `asn1:"explicit,tag:0"`
}

// BuildNegTokenInit wraps mechToken (an NTLMSSP type 1 message, see
// package ntlm) in a GSS-API InitialContextToken offering only the
// NTLMSSP mechanism, DER-encoded and ready to carry as a
// SESSION_SETUP_ANDX SecurityBlob.
func BuildNegTokenInit(mechToken []byte) ([]byte, error) {
	inner := initialContextToken{
		ThisMech: oidSPNEGO,
		Inner: negTokenInitChoice{
			NegTokenInit: negTokenInit{
				MechTypes: []asn1.ObjectIdentifier{oidNTLMSSP},
				MechToken: mechToken,
			},
		},
	}
	body, err := asn1.Marshal(inner)
	if err != nil {
		return nil, err
	}
	// Re-tag the outer SEQUENCE as [APPLICATION 0] per RFC 2743 §3.1;
	// asn1.Marshal has no direct support for an APPLICATION-tagged
	// struct whose contents are themselves a plain SEQUENCE, so the
	// tag byte is patched in place.
	if len(body) == 0 {
		return nil, errEmptyToken
	}
	body[0] = 0x60 // APPLICATION, constructed, tag 0
	return body, nil
}

var errEmptyToken = asn1.SyntaxError{Msg: "spnego: empty encoded token"}
