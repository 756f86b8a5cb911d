package smb1

import (
	"encoding/binary"
	"fmt"
)

// TRANS2 (SMB_COM_TRANSACTION2, MS-CIFS 2.2.4.46) request/response
// envelope. Offsets inside the transaction parameter/data blocks are
// measured from the start of the SMB header, matching MS-CIFS and the
// common client implementations this is grounded on.

// trans2ReqFixedWords is the word count of the fixed SMB_COM_TRANSACTION2
// request parameter words before the variable-length Setup array.
const trans2ReqFixedWords = 14

// BuildTrans2Request assembles the parameter-words block and data block
// for an SMB_COM_TRANSACTION2 request carrying a single Setup word (the
// subcommand) plus transaction parameters and transaction data.
func BuildTrans2Request(subcommand uint16, transParams, transData []byte, maxParamCount, maxDataCount uint16) (params, data []byte) {
	// Layout of the data section (after ByteCount): Name (null byte,
	// since this client never uses a named transaction), pad to align
	// transaction parameters on a 4-byte boundary, transaction
	// parameters, pad to align transaction data, transaction data.
	const headerAndWordCountAndByteCount = HeaderSize + 1 + (trans2ReqFixedWords+1)*2 + 2

	nameLen := 1 // single null byte "name"
	paramOffset := headerAndWordCountAndByteCount + nameLen
	paramPad := align4Pad(paramOffset)
	paramOffset += paramPad

	dataOffset := paramOffset + len(transParams)
	dataPad := align4Pad(dataOffset)
	dataOffset += dataPad

	dataBlock := make([]byte, 0, nameLen+paramPad+len(transParams)+dataPad+len(transData))
	dataBlock = append(dataBlock, 0x00) // Name
	dataBlock = append(dataBlock, make([]byte, paramPad)...)
	dataBlock = append(dataBlock, transParams...)
	dataBlock = append(dataBlock, make([]byte, dataPad)...)
	dataBlock = append(dataBlock, transData...)

	p := make([]byte, 0, trans2ReqFixedWords*2+2)
	p = putU16(p, uint16(len(transParams)))        // TotalParameterCount
	p = putU16(p, uint16(len(transData)))          // TotalDataCount
	p = putU16(p, maxParamCount)                   // MaxParameterCount
	p = putU16(p, maxDataCount)                    // MaxDataCount
	p = append(p, 0x00, 0x00)                      // MaxSetupCount + Reserved
	p = putU16(p, 0x0000)                          // Flags
	p = append(p, 0x00, 0x00, 0x00, 0x00)          // Timeout
	p = putU16(p, 0x0000)                          // Reserved2
	p = putU16(p, uint16(len(transParams)))        // ParameterCount
	p = putU16(p, uint16(paramOffset))             // ParameterOffset
	p = putU16(p, uint16(len(transData)))          // DataCount
	p = putU16(p, uint16(dataOffset))              // DataOffset
	p = append(p, 0x01, 0x00)                      // SetupCount=1 + Reserved3
	p = putU16(p, subcommand)                      // Setup[0]

	return p, dataBlock
}

func putU16(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}

func align4Pad(offset int) int {
	rem := offset % 4
	if rem == 0 {
		return 0
	}
	return 4 - rem
}

// Trans2Response is a decoded SMB_COM_TRANSACTION2 response.
type Trans2Response struct {
	Parameters []byte
	Data       []byte
}

// ParseTrans2Response parses the parameter words and data bytes of an
// SMB_COM_TRANSACTION2 response message (as split out by ParseMessage)
// into the transaction's own parameter and data blocks.
func ParseTrans2Response(msg *Message) (*Trans2Response, error) {
	p := msg.Params
	if len(p) < 20 {
		return nil, fmt.Errorf("smb1: trans2 response parameter words too short: %d bytes", len(p))
	}
	le := binary.LittleEndian
	totalParamCount := le.Uint16(p[0:2])
	totalDataCount := le.Uint16(p[2:4])
	_ = totalParamCount
	_ = totalDataCount
	paramCount := le.Uint16(p[6:8])
	paramOffset := le.Uint16(p[8:10])
	dataCount := le.Uint16(p[12:14])
	dataOffset := le.Uint16(p[14:16])

	// Offsets are relative to the start of the SMB header; msg.Data is
	// the ByteCount-delimited slice of the original buffer, so we need
	// the header+wordcount+params+bytecount prefix length to translate.
	dataBlockStart := HeaderSize + 1 + len(p) + 2

	getSlice := func(offset int, count int, label string) ([]byte, error) {
		abs := offset - dataBlockStart
		if abs < 0 || abs+count > len(msg.Data) {
			return nil, fmt.Errorf("smb1: trans2 response %s out of range (offset=%d count=%d data=%d)", label, offset, count, len(msg.Data))
		}
		return msg.Data[abs : abs+count], nil
	}

	params, err := getSlice(int(paramOffset), int(paramCount), "parameters")
	if err != nil {
		return nil, err
	}
	data, err := getSlice(int(dataOffset), int(dataCount), "data")
	if err != nil {
		return nil, err
	}
	return &Trans2Response{Parameters: params, Data: data}, nil
}
