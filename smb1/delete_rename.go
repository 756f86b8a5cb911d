package smb1

import "encoding/binary"

// SearchAttributesHiddenSystem is the SearchAttributes value this client
// always sends for DELETE, so hidden/system files can be removed (spec.md
// §4.2; microSD cards routinely carry hidden/system files left by the
// console firmware). The attribute bits themselves are defined once in
// find.go, shared with FIND_FIRST2's SearchAttributes.
const SearchAttributesHiddenSystem = uint16(AttrHidden | AttrSystem)

// BuildDeleteRequest builds the parameter words and data block for
// SMB_COM_DELETE (MS-CIFS 2.2.4.7.1). path's buffer format and alignment
// pad are the workaround documented in spec.md §9.
func BuildDeleteRequest(path string) (params, data []byte) {
	p := make([]byte, 2)
	binary.LittleEndian.PutUint16(p, SearchAttributesHiddenSystem)
	return p, WriteAlignedUnicodeString(path)
}

// BuildRenameRequest builds the parameter words and data block for
// SMB_COM_RENAME (MS-CIFS 2.2.4.8.1), moving oldPath to newPath. Both
// names use the same alignment workaround as DELETE.
func BuildRenameRequest(oldPath, newPath string) (params, data []byte) {
	p := make([]byte, 2)
	binary.LittleEndian.PutUint16(p, SearchAttributesHiddenSystem)

	d := make([]byte, 0, 2*(len(oldPath)+len(newPath))+8)
	d = append(d, WriteAlignedUnicodeString(oldPath)...)
	d = append(d, WriteAlignedUnicodeString(newPath)...)
	return p, d
}
