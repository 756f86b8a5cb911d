package smb1

import "encoding/binary"

// BuildCloseRequest builds the parameter words for SMB_COM_CLOSE
// (MS-CIFS 2.2.4.5.1), releasing fid. LastWriteTime is left as 0xFFFFFFFF
// so the server does not alter the file's timestamp on close.
func BuildCloseRequest(fid uint16) []byte {
	p := make([]byte, 6)
	binary.LittleEndian.PutUint16(p, fid)
	p[2], p[3], p[4], p[5] = 0xFF, 0xFF, 0xFF, 0xFF
	return p
}
