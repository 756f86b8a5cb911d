package smb1

import (
	"encoding/binary"
	"fmt"
)

// DesiredAccess bits (MS-DTYP 2.6, restricted to the subset this client
// needs).
const (
	AccessGenericRead    uint32 = 0x80000000
	AccessGenericWrite   uint32 = 0x40000000
	AccessReadData       uint32 = 0x00000001
	AccessWriteData      uint32 = 0x00000002
	AccessDelete         uint32 = 0x00010000
	AccessListDirectory  uint32 = 0x00000001
)

// ShareAccess bits.
const (
	ShareRead   uint32 = 0x00000001
	ShareWrite  uint32 = 0x00000002
	ShareDelete uint32 = 0x00000004
)

// CreateDisposition values (MS-CIFS 2.2.4.64.1).
const (
	DispositionSupersede   uint32 = 0x00000000
	DispositionOpen        uint32 = 0x00000001
	DispositionCreate      uint32 = 0x00000002
	DispositionOpenIf      uint32 = 0x00000003
	DispositionOverwrite   uint32 = 0x00000004
	DispositionOverwriteIf uint32 = 0x00000005
)

// CreateOptions bits.
const (
	OptionDirectoryFile    uint32 = 0x00000001
	OptionNonDirectoryFile uint32 = 0x00000040
)

// AccessMode is the semantic access a caller requests from open(), mapped
// to DesiredAccess/ShareAccess bitmasks per spec.md §4.2.
type AccessMode int

const (
	AccessRead AccessMode = iota
	AccessWrite
	AccessReadWrite
)

// Disposition is the semantic create disposition a caller requests,
// mapped to a CreateDisposition value per spec.md §4.2.
type Disposition int

const (
	OpenExisting Disposition = iota
	CreateNew
	OverwriteIf
	OpenIfExists
)

func (d Disposition) toWire() uint32 {
	switch d {
	case CreateNew:
		return DispositionCreate
	case OverwriteIf:
		return DispositionOverwriteIf
	case OpenIfExists:
		return DispositionOpenIf
	default:
		return DispositionOpen
	}
}

func (a AccessMode) toWire() (desiredAccess, shareAccess uint32) {
	switch a {
	case AccessWrite:
		return AccessGenericWrite | AccessDelete, ShareRead | ShareWrite
	case AccessReadWrite:
		return AccessGenericRead | AccessGenericWrite | AccessDelete, ShareRead | ShareWrite
	default:
		return AccessGenericRead, ShareRead | ShareWrite | ShareDelete
	}
}

// BuildNTCreateAndXRequest builds the parameter words and data block for
// SMB_COM_NT_CREATE_ANDX (MS-CIFS 2.2.4.64.1). createOptions lets callers
// pass OptionDirectoryFile for mkdir-via-create.
func BuildNTCreateAndXRequest(path string, access AccessMode, disposition Disposition, extraCreateOptions uint32) (params, data []byte) {
	desiredAccess, shareAccess := access.toWire()
	nameBytes := EncodeUTF16LE(path)
	nameLen := uint16(len(nameBytes) - 2) // NameLength excludes the null terminator

	p := make([]byte, 0, 48)
	p = append(p, AndXNoCommand, 0x00)
	p = putU16(p, 0) // AndXOffset
	p = append(p, 0x00)
	p = putU16(p, nameLen)
	p = append(p, 0, 0, 0, 0) // Flags
	p = append(p, 0, 0, 0, 0) // RootDirectoryFID
	p = append(p, u32le(desiredAccess)...)
	p = append(p, 0, 0, 0, 0, 0, 0, 0, 0) // AllocationSize
	p = append(p, 0, 0, 0, 0)             // ExtFileAttributes
	p = append(p, u32le(shareAccess)...)
	p = append(p, u32le(disposition.toWire())...)
	p = append(p, u32le(extraCreateOptions)...)
	p = append(p, 0x02, 0x00, 0x00, 0x00) // ImpersonationLevel = SECURITY_IMPERSONATION
	p = append(p, 0x00)                   // SecurityFlags

	// The filename must start on an even offset; the prefix up to here
	// (header + wordcount + 48 params + bytecount) is odd-length, so a
	// single pad byte is needed the same way DELETE/RENAME need one.
	d := make([]byte, 0, len(nameBytes)+1)
	d = append(d, 0x00)
	d = append(d, nameBytes...)

	return p, d
}

func u32le(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// NTCreateAndXResponse is the decoded response this client needs: the
// FID and the attributes spec.md §3 records for a file handle.
type NTCreateAndXResponse struct {
	FID              uint16
	IsDirectory      bool
	EndOfFile        uint64
	ExtFileAttributes uint32
}

// ParseNTCreateAndXResponse parses the SMB_COM_NT_CREATE_ANDX response
// parameter words.
func ParseNTCreateAndXResponse(msg *Message) (*NTCreateAndXResponse, error) {
	p := msg.Params
	if len(p) < 68 {
		return nil, fmt.Errorf("smb1: nt_create_andx response too short: %d bytes", len(p))
	}
	le := binary.LittleEndian
	return &NTCreateAndXResponse{
		FID:               le.Uint16(p[5:7]),
		ExtFileAttributes: le.Uint32(p[43:47]),
		EndOfFile:         le.Uint64(p[55:63]),
		IsDirectory:       p[67] != 0,
	}, nil
}
