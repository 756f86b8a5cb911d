package smb1

import (
	"encoding/binary"
	"fmt"
)

// InfoLevelQueryFSSizeInfo is the TRANS2 QUERY_FS_INFORMATION level
// SMB_QUERY_FS_SIZE_INFO.
const InfoLevelQueryFSSizeInfo uint16 = 0x0103

// BuildQueryFSInformationRequest builds the TRANS2 parameter block for
// QUERY_FS_INFORMATION at the given information level.
func BuildQueryFSInformationRequest(level uint16) []byte {
	return putU16(nil, level)
}

// FSSizeInfo is the decoded SMB_QUERY_FS_SIZE_INFO response data block
// (MS-CIFS 2.2.8.3.8): total/free allocation units, sectors per unit and
// bytes per sector. Free bytes are the caller's arithmetic on these per
// spec.md §4.2.
type FSSizeInfo struct {
	TotalAllocationUnits     uint64
	TotalFreeAllocationUnits uint64
	SectorsPerUnit           uint32
	BytesPerSector           uint32
}

// ParseFSSizeInfo decodes a QUERY_FS_INFORMATION response data block at
// level SMB_QUERY_FS_SIZE_INFO.
func ParseFSSizeInfo(buf []byte) (*FSSizeInfo, error) {
	if len(buf) < 24 {
		return nil, fmt.Errorf("smb1: fs size info too short: %d bytes", len(buf))
	}
	le := binary.LittleEndian
	return &FSSizeInfo{
		TotalAllocationUnits:     le.Uint64(buf[0:8]),
		TotalFreeAllocationUnits: le.Uint64(buf[8:16]),
		SectorsPerUnit:           le.Uint32(buf[16:20]),
		BytesPerSector:           le.Uint32(buf[20:24]),
	}, nil
}

// TotalBytes returns the total share capacity in bytes.
func (f *FSSizeInfo) TotalBytes() uint64 {
	return f.TotalAllocationUnits * uint64(f.SectorsPerUnit) * uint64(f.BytesPerSector)
}

// FreeBytes returns the free share capacity in bytes.
func (f *FSSizeInfo) FreeBytes() uint64 {
	return f.TotalFreeAllocationUnits * uint64(f.SectorsPerUnit) * uint64(f.BytesPerSector)
}
