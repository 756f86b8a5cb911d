package smb1

import (
	"encoding/binary"
	"fmt"
)

// FindFirst2/FindNext2 flags (MS-CIFS 2.2.6.1.2).
const (
	FindFlagCloseAfterRequest uint16 = 0x0001
	FindFlagCloseAtEOS        uint16 = 0x0002
	FindFlagResumeKeys        uint16 = 0x0004
)

// InfoLevelFindFileBothDirectoryInfo is the TRANS2 information level
// SMB_FIND_FILE_BOTH_DIRECTORY_INFO.
const InfoLevelFindFileBothDirectoryInfo uint16 = 0x0104

// File attribute bits (MS-CIFS 2.2.1.2.3) used to classify directory
// entries.
const (
	AttrReadonly  uint32 = 0x0001
	AttrHidden    uint32 = 0x0002
	AttrSystem    uint32 = 0x0004
	AttrDirectory uint32 = 0x0010
	AttrArchive   uint32 = 0x0020
)

// BuildFindFirst2Request builds the TRANS2 parameter block for
// FIND_FIRST2 searching searchPattern (e.g. `\dir\*`) for both files and
// directories including hidden/system entries, at the BOTH_DIRECTORY_INFO
// level, asking the server to close the search on end-of-search.
func BuildFindFirst2Request(searchPattern string) []byte {
	const searchAttributes uint16 = 0x0016 // hidden | system | directory
	patternBytes := EncodeUTF16LE(searchPattern)

	p := make([]byte, 0, 12+len(patternBytes))
	p = putU16(p, searchAttributes)
	p = putU16(p, 0xFFFF) // SearchCount: as many as fit in one response
	p = putU16(p, FindFlagCloseAtEOS)
	p = putU16(p, InfoLevelFindFileBothDirectoryInfo)
	p = append(p, 0, 0, 0, 0) // SearchStorageType
	p = append(p, patternBytes...)
	return p
}

// FindFirst2ResponseParams is the fixed portion of a FIND_FIRST2 response
// parameter block.
type FindFirst2ResponseParams struct {
	SID             uint16
	SearchCount     uint16
	EndOfSearch     bool
	EAErrorOffset   uint16
	LastNameOffset  uint16
}

// ParseFindFirst2ResponseParams parses the FIND_FIRST2 response parameter
// block.
func ParseFindFirst2ResponseParams(buf []byte) (*FindFirst2ResponseParams, error) {
	if len(buf) < 10 {
		return nil, fmt.Errorf("smb1: find_first2 response params too short: %d bytes", len(buf))
	}
	le := binary.LittleEndian
	return &FindFirst2ResponseParams{
		SID:            le.Uint16(buf[0:2]),
		SearchCount:    le.Uint16(buf[2:4]),
		EndOfSearch:    le.Uint16(buf[4:6])&0x0001 != 0,
		EAErrorOffset:  le.Uint16(buf[6:8]),
		LastNameOffset: le.Uint16(buf[8:10]),
	}, nil
}

// BuildFindNext2Request builds the TRANS2 parameter block for FIND_NEXT2,
// continuing the search identified by sid from resumeKey/lastName.
func BuildFindNext2Request(sid uint16, lastName string) []byte {
	nameBytes := EncodeUTF16LE(lastName)
	p := make([]byte, 0, 12+len(nameBytes))
	p = putU16(p, sid)
	p = putU16(p, 0xFFFF) // SearchCount
	p = putU16(p, InfoLevelFindFileBothDirectoryInfo)
	p = append(p, 0, 0, 0, 0) // ResumeKey
	p = putU16(p, FindFlagCloseAtEOS|FindFlagResumeKeys)
	p = append(p, nameBytes...)
	return p
}

// FindNext2ResponseParams is the fixed portion of a FIND_NEXT2 response
// parameter block.
type FindNext2ResponseParams struct {
	SearchCount    uint16
	EndOfSearch    bool
	EAErrorOffset  uint16
	LastNameOffset uint16
}

// ParseFindNext2ResponseParams parses the FIND_NEXT2 response parameter
// block.
func ParseFindNext2ResponseParams(buf []byte) (*FindNext2ResponseParams, error) {
	if len(buf) < 8 {
		return nil, fmt.Errorf("smb1: find_next2 response params too short: %d bytes", len(buf))
	}
	le := binary.LittleEndian
	return &FindNext2ResponseParams{
		SearchCount:    le.Uint16(buf[0:2]),
		EndOfSearch:    le.Uint16(buf[2:4])&0x0001 != 0,
		EAErrorOffset:  le.Uint16(buf[4:6]),
		LastNameOffset: le.Uint16(buf[6:8]),
	}, nil
}

// DirEntry is one decoded SMB_FIND_FILE_BOTH_DIRECTORY_INFO record.
type DirEntry struct {
	Name       string
	Size       uint64
	IsDir      bool
	Attributes uint32
	MTime      uint64 // FILETIME
}

// ParseFindFileBothDirectoryInfo decodes a buffer of consecutive
// SMB_FIND_FILE_BOTH_DIRECTORY_INFO records (MS-CIFS 2.2.8.1.7), filtering
// out "." and "..".
func ParseFindFileBothDirectoryInfo(buf []byte) ([]DirEntry, error) {
	le := binary.LittleEndian
	var entries []DirEntry
	for len(buf) > 0 {
		if len(buf) < 94 {
			return nil, fmt.Errorf("smb1: directory info record too short: %d bytes", len(buf))
		}
		nextOffset := le.Uint32(buf[0:4])
		// LastWriteTime at offset 24, EndOfFile at offset 40,
		// ExtFileAttributes at offset 56, FileNameLength at offset 60,
		// FileName begins at offset 94 (after the fixed 8.3 short-name
		// block), per MS-CIFS 2.2.8.1.7. CreationTime/LastAccessTime
		// (8-23), ChangeTime (32-39) and AllocationSize (48-55) are not
		// surfaced on DirEntry.
		lastWriteTime := le.Uint64(buf[24:32])
		endOfFile := le.Uint64(buf[40:48])
		attrs := le.Uint32(buf[56:60])
		nameLen := le.Uint32(buf[60:64])

		if int(94+nameLen) > len(buf) {
			return nil, fmt.Errorf("smb1: directory info record name overruns buffer")
		}
		name := DecodeUTF16LE(buf[94 : 94+nameLen])

		if name != "." && name != ".." {
			entries = append(entries, DirEntry{
				Name:       name,
				Size:       endOfFile,
				IsDir:      attrs&AttrDirectory != 0,
				Attributes: attrs,
				MTime:      lastWriteTime,
			})
		}

		if nextOffset == 0 {
			break
		}
		if int(nextOffset) > len(buf) {
			return nil, fmt.Errorf("smb1: directory info NextEntryOffset out of range")
		}
		buf = buf[nextOffset:]
	}
	return entries, nil
}
