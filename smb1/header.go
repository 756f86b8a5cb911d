// Package smb1 implements the SMB1 (CIFS) wire format subset needed to
// talk to the microSD Management server: the fixed 32-byte header, the
// handful of command verbs, and the Unicode alignment workaround DELETE
// and RENAME require.
//
// MIT License
//
// # Copyright (c) 2023 Jimmy Fjällid
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
package smb1

import (
	"fmt"

	"github.com/JohnDeved/n3ds-smb/smb1/encoder"
)

// ProtocolSignature is the fixed 4-byte SMB signature, \xFFSMB.
const ProtocolSignature = "\xFFSMB"

// Command bytes used by this client (MS-CIFS 2.2.2.1).
const (
	CommandCreateDirectory  byte = 0x00
	CommandDeleteDirectory  byte = 0x01
	CommandClose            byte = 0x04
	CommandDelete           byte = 0x06
	CommandRename           byte = 0x07
	CommandReadAndX         byte = 0x2E
	CommandWriteAndX        byte = 0x2F
	CommandTransaction2     byte = 0x32
	CommandEcho             byte = 0x2B
	CommandNegotiate        byte = 0x72
	CommandSessionSetupAndX byte = 0x73
	CommandTreeConnectAndX  byte = 0x75
	CommandTreeDisconnect   byte = 0x71
	CommandLogoffAndX       byte = 0x74
	CommandNTCreateAndX     byte = 0xA2
)

// TRANS2 subcommands (MS-CIFS 2.2.4.46).
const (
	Trans2FindFirst2         uint16 = 0x0001
	Trans2FindNext2          uint16 = 0x0002
	Trans2QueryFSInformation uint16 = 0x0003
)

// Header flags (MS-CIFS 2.2.3.1).
const (
	FlagsCanonicalizedPaths byte = 0x10
	FlagsCaseInsensitive    byte = 0x08
)

// Header flags2 bits. NewHeader sets LongNames, NTStatus and Unicode on
// every request; ExtendedSecurity is not set.
const (
	Flags2LongNames        uint16 = 0x0001
	Flags2ExtendedSecurity uint16 = 0x0800
	Flags2NTStatus         uint16 = 0x4000
	Flags2Unicode          uint16 = 0x8000
)

// AndXNoCommand marks the end of an AndX chain.
const AndXNoCommand byte = 0xFF

// Header is the fixed 32-byte MS-CIFS 2.2.3.1 SMB header.
type Header struct {
	Protocol         []byte `smb:"fixed:4"`
	Command          uint8
	Status           uint32
	Flags            uint8
	Flags2           uint16
	PIDHigh          uint16
	SecurityFeatures []byte `smb:"fixed:8"`
	Reserved         uint16
	TID              uint16
	PIDLow           uint16
	UID              uint16
	MID              uint16
}

// HeaderSize is the encoded size of Header in bytes.
const HeaderSize = 32

// NewHeader builds a header with the protocol signature and the Unicode +
// NT-status flags2 bits every post-NEGOTIATE request carries.
func NewHeader(command byte, tid, pidLow, uid, mid uint16) Header {
	return Header{
		Protocol:         []byte(ProtocolSignature),
		Command:          command,
		Flags:            FlagsCanonicalizedPaths | FlagsCaseInsensitive,
		Flags2:           Flags2Unicode | Flags2NTStatus | Flags2LongNames,
		SecurityFeatures: make([]byte, 8),
		TID:              tid,
		PIDLow:           pidLow,
		UID:              uid,
		MID:              mid,
	}
}

// Marshal encodes the header to its 32-byte wire form.
func (h Header) Marshal() ([]byte, error) {
	buf, err := encoder.Marshal(h)
	if err != nil {
		return nil, err
	}
	if len(buf) != HeaderSize {
		return nil, fmt.Errorf("smb1: encoded header is %d bytes, want %d", len(buf), HeaderSize)
	}
	return buf, nil
}

// UnmarshalHeader decodes a 32-byte SMB1 header and validates the
// protocol signature.
func UnmarshalHeader(buf []byte) (Header, error) {
	var h Header
	if len(buf) < HeaderSize {
		return h, fmt.Errorf("smb1: header buffer too short: %d bytes", len(buf))
	}
	if err := encoder.Unmarshal(buf[:HeaderSize], &h); err != nil {
		return h, err
	}
	if string(h.Protocol) != ProtocolSignature {
		return h, fmt.Errorf("smb1: bad protocol signature %q", h.Protocol)
	}
	return h, nil
}

// Message is a decoded SMB1 response split into its three sections, per
// spec.md §4.1's send_recv contract.
type Message struct {
	Header Header
	Params []byte // WordCount words, following the WordCount byte itself
	Data   []byte // ByteCount bytes, following the ByteCount field
}

// ParseMessage splits a raw SMB1 message (header + WordCount/params +
// ByteCount/data) into its sections.
func ParseMessage(buf []byte) (*Message, error) {
	hdr, err := UnmarshalHeader(buf)
	if err != nil {
		return nil, err
	}
	off := HeaderSize
	if off >= len(buf) {
		return nil, fmt.Errorf("smb1: message missing WordCount")
	}
	wordCount := int(buf[off])
	off++
	paramsLen := wordCount * 2
	if off+paramsLen > len(buf) {
		return nil, fmt.Errorf("smb1: message truncated in parameter words")
	}
	params := buf[off : off+paramsLen]
	off += paramsLen

	if off+2 > len(buf) {
		return nil, fmt.Errorf("smb1: message missing ByteCount")
	}
	byteCount := int(buf[off]) | int(buf[off+1])<<8
	off += 2
	if off+byteCount > len(buf) {
		return nil, fmt.Errorf("smb1: message truncated in data bytes")
	}
	data := buf[off : off+byteCount]

	return &Message{Header: hdr, Params: params, Data: data}, nil
}

// BuildMessage assembles header + WordCount/params + ByteCount/data into
// a raw SMB1 message ready to be wrapped in an NBSS frame. params must be
// a whole number of 16-bit words.
func BuildMessage(hdr Header, params, data []byte) ([]byte, error) {
	if len(params)%2 != 0 {
		return nil, fmt.Errorf("smb1: parameter block must be a whole number of words, got %d bytes", len(params))
	}
	hdrBuf, err := hdr.Marshal()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(hdrBuf)+1+len(params)+2+len(data))
	buf = append(buf, hdrBuf...)
	buf = append(buf, byte(len(params)/2))
	buf = append(buf, params...)
	buf = append(buf, byte(len(data)), byte(len(data)>>8))
	buf = append(buf, data...)
	return buf, nil
}
