package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JohnDeved/n3ds-smb/n3dserr"
	"github.com/JohnDeved/n3ds-smb/nbss"
	"github.com/JohnDeved/n3ds-smb/smb1"
	"github.com/JohnDeved/n3ds-smb/transport"
)

// newPipeClient wires a Client directly to one end of an in-memory
// net.Pipe, the same way transport_test.go's newPipeTransport bypasses
// Dial's hardcoded port 139, so the handshake/file-verb methods can be
// exercised against a fake server goroutine.
func newPipeClient(state State) (*Client, net.Conn) {
	connClient, connServer := net.Pipe()
	tr := transport.NewFromConn(connClient)
	c := &Client{ip: net.ParseIP("10.0.0.5"), netbiosName: "TESTBOX", t: tr, state: state}
	return c, connServer
}

// recvRequest reads one SMB message off the fake server's end of the pipe.
func recvRequest(t *testing.T, server net.Conn) *smb1.Message {
	t.Helper()
	frame, err := nbss.ReadFrame(bufio.NewReader(server))
	require.NoError(t, err)
	msg, err := smb1.ParseMessage(frame.Payload)
	require.NoError(t, err)
	return msg
}

func sendResponse(t *testing.T, server net.Conn, command byte, mid uint16, params, data []byte) {
	t.Helper()
	hdr := smb1.NewHeader(command, 0, 0, 0, mid)
	resp, err := smb1.BuildMessage(hdr, params, data)
	require.NoError(t, err)
	require.NoError(t, nbss.WriteFrame(server, nbss.TypeSessionMessage, resp))
}

func buildNegotiateResponseParams(maxBufferSize uint32) []byte {
	p := make([]byte, 34)
	le := binary.LittleEndian
	le.PutUint16(p[0:2], 0) // DialectIndex
	p[2] = 0x03             // SecurityMode
	le.PutUint32(p[7:11], maxBufferSize)
	return p
}

func buildDirectoryInfoRecord(t *testing.T, nextOffset uint32, name string, size uint64, attrs uint32) []byte {
	t.Helper()
	nameBytes := smb1.EncodeUTF16LE(name)
	nameBytes = nameBytes[:len(nameBytes)-2]
	buf := make([]byte, 94+len(nameBytes))
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], nextOffset)
	le.PutUint64(buf[40:48], size)
	le.PutUint32(buf[56:60], attrs)
	le.PutUint32(buf[60:64], uint32(len(nameBytes)))
	copy(buf[94:], nameBytes)
	return buf
}

// buildTrans2Response lays out SMB_COM_TRANSACTION2 response parameter
// words (no setup words) and a data block carrying transParams and
// transData at 4-byte aligned offsets measured from the SMB header.
func buildTrans2Response(transParams, transData []byte) (params, data []byte) {
	params = make([]byte, 20)
	blockStart := smb1.HeaderSize + 1 + len(params) + 2
	paramOffset := (blockStart + 3) &^ 3
	dataOffset := (paramOffset + len(transParams) + 3) &^ 3
	le := binary.LittleEndian
	le.PutUint16(params[0:2], uint16(len(transParams)))
	le.PutUint16(params[2:4], uint16(len(transData)))
	le.PutUint16(params[6:8], uint16(len(transParams)))
	le.PutUint16(params[8:10], uint16(paramOffset))
	le.PutUint16(params[12:14], uint16(len(transData)))
	le.PutUint16(params[14:16], uint16(dataOffset))
	data = make([]byte, dataOffset-blockStart+len(transData))
	copy(data[paramOffset-blockStart:], transParams)
	copy(data[dataOffset-blockStart:], transData)
	return params, data
}

func TestStateStringNames(t *testing.T) {
	require.Equal(t, "CLOSED", StateClosed.String())
	require.Equal(t, "TCP_OPEN", StateTCPOpen.String())
	require.Equal(t, "NBSS_READY", StateNBSSReady.String())
	require.Equal(t, "NEGOTIATED", StateNegotiated.String())
	require.Equal(t, "AUTHED", StateAuthed.String())
	require.Equal(t, "READY", StateReady.String())
	require.Equal(t, "UNKNOWN", State(99).String())
}

func TestListdirRejectsWrongState(t *testing.T) {
	c := NewClient(net.ParseIP("10.0.0.5"), "TESTBOX")
	_, err := c.Listdir(context.Background(), `\`)
	var se *n3dserr.StateError
	require.ErrorAs(t, err, &se)
}

func TestListdirRejectsInvalidPath(t *testing.T) {
	c := &Client{state: StateReady}
	_, err := c.Listdir(context.Background(), `\foo\..\bar`)
	var ae *n3dserr.ArgumentError
	require.ErrorAs(t, err, &ae)
}

func TestNegotiateSetsMaxBufferSize(t *testing.T) {
	c, server := newPipeClient(StateNBSSReady)
	defer server.Close()

	go func() {
		req := recvRequest(t, server)
		sendResponse(t, server, smb1.CommandNegotiate, req.Header.MID, buildNegotiateResponseParams(16384), nil)
	}()

	require.NoError(t, c.negotiate(context.Background()))
	require.Equal(t, uint32(16384), c.t.MaxBufferSize())
}

func TestNegotiateRejectsAllDialectsRefused(t *testing.T) {
	c, server := newPipeClient(StateNBSSReady)
	defer server.Close()

	params := make([]byte, 2)
	binary.LittleEndian.PutUint16(params, 0xFFFF)
	go func() {
		req := recvRequest(t, server)
		sendResponse(t, server, smb1.CommandNegotiate, req.Header.MID, params, nil)
	}()

	require.Error(t, c.negotiate(context.Background()))
}

func TestSessionSetupAndTreeConnectSequence(t *testing.T) {
	c, server := newPipeClient(StateNegotiated)
	defer server.Close()
	c.t.SetMaxBufferSize(16384)

	done := make(chan struct{})
	go func() {
		defer close(done)
		req := recvRequest(t, server)
		require.Equal(t, smb1.CommandSessionSetupAndX, req.Header.Command)
		ssParams := make([]byte, 6)
		sendResponse(t, server, smb1.CommandSessionSetupAndX, req.Header.MID, ssParams, nil)

		req = recvRequest(t, server)
		require.Equal(t, smb1.CommandTreeConnectAndX, req.Header.Command)
		tcParams := make([]byte, 4)
		sendResponse(t, server, smb1.CommandTreeConnectAndX, req.Header.MID, tcParams, nil)
	}()

	require.NoError(t, c.sessionSetup(context.Background()))
	require.NoError(t, c.treeConnect(context.Background()))
	<-done
}

func TestListdirSinglePage(t *testing.T) {
	c, server := newPipeClient(StateReady)
	defer server.Close()
	c.t.SetMaxBufferSize(16384)

	go func() {
		req := recvRequest(t, server)
		require.Equal(t, smb1.CommandTransaction2, req.Header.Command)

		recA := buildDirectoryInfoRecord(t, 0, "a.txt", 42, 0)
		ffParams := make([]byte, 10)
		binary.LittleEndian.PutUint16(ffParams[0:2], 7)  // SID
		binary.LittleEndian.PutUint16(ffParams[2:4], 1)  // SearchCount
		binary.LittleEndian.PutUint16(ffParams[4:6], 1)  // EndOfSearch=true
		tp, td := buildTrans2Response(ffParams, recA)
		sendResponse(t, server, smb1.CommandTransaction2, req.Header.MID, tp, td)
	}()

	entries, err := c.Listdir(context.Background(), `\`)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "a.txt", entries[0].Name)
	require.Equal(t, uint64(42), entries[0].Size)
}

func TestListdirMultiPage(t *testing.T) {
	c, server := newPipeClient(StateReady)
	defer server.Close()
	c.t.SetMaxBufferSize(16384)

	go func() {
		req := recvRequest(t, server)
		require.Equal(t, smb1.CommandTransaction2, req.Header.Command)
		recA := buildDirectoryInfoRecord(t, 0, "a.txt", 10, 0)
		ffParams := make([]byte, 10)
		binary.LittleEndian.PutUint16(ffParams[0:2], 7) // SID
		binary.LittleEndian.PutUint16(ffParams[2:4], 1)
		binary.LittleEndian.PutUint16(ffParams[4:6], 0) // EndOfSearch=false
		tp, td := buildTrans2Response(ffParams, recA)
		sendResponse(t, server, smb1.CommandTransaction2, req.Header.MID, tp, td)

		req = recvRequest(t, server)
		require.Equal(t, smb1.CommandTransaction2, req.Header.Command)
		recB := buildDirectoryInfoRecord(t, 0, "b.txt", 20, 0)
		fnParams := make([]byte, 8)
		binary.LittleEndian.PutUint16(fnParams[0:2], 1)
		binary.LittleEndian.PutUint16(fnParams[2:4], 1) // EndOfSearch=true
		tp, td = buildTrans2Response(fnParams, recB)
		sendResponse(t, server, smb1.CommandTransaction2, req.Header.MID, tp, td)
	}()

	entries, err := c.Listdir(context.Background(), `\`)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "a.txt", entries[0].Name)
	require.Equal(t, "b.txt", entries[1].Name)
}

func TestDiskInfo(t *testing.T) {
	c, server := newPipeClient(StateReady)
	defer server.Close()
	c.t.SetMaxBufferSize(16384)

	go func() {
		req := recvRequest(t, server)
		require.Equal(t, smb1.CommandTransaction2, req.Header.Command)
		fsData := make([]byte, 24)
		le := binary.LittleEndian
		le.PutUint64(fsData[0:8], 1000)
		le.PutUint64(fsData[8:16], 400)
		le.PutUint32(fsData[16:20], 8)
		le.PutUint32(fsData[20:24], 512)
		tp, td := buildTrans2Response(nil, fsData)
		sendResponse(t, server, smb1.CommandTransaction2, req.Header.MID, tp, td)
	}()

	info, err := c.DiskInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(1000*8*512), info.TotalBytes)
	require.Equal(t, uint64(400*8*512), info.FreeBytes)
	require.Equal(t, info.TotalBytes-info.FreeBytes, info.UsedBytes)
}

func buildNTCreateAndXResponseParams(fid uint16, endOfFile uint64, isDirectory bool) []byte {
	p := make([]byte, 68)
	le := binary.LittleEndian
	le.PutUint16(p[5:7], fid)
	le.PutUint64(p[55:63], endOfFile)
	if isDirectory {
		p[67] = 1
	}
	return p
}

func TestGetFileReadsFullContentsInOneChunk(t *testing.T) {
	c, server := newPipeClient(StateReady)
	defer server.Close()
	c.t.SetMaxBufferSize(16384)

	payload := []byte("file contents")
	go func() {
		req := recvRequest(t, server)
		require.Equal(t, smb1.CommandNTCreateAndX, req.Header.Command)
		sendResponse(t, server, smb1.CommandNTCreateAndX, req.Header.MID, buildNTCreateAndXResponseParams(3, uint64(len(payload)), false), nil)

		req = recvRequest(t, server)
		require.Equal(t, smb1.CommandReadAndX, req.Header.Command)
		rParams := make([]byte, 24)
		le := binary.LittleEndian
		le.PutUint16(rParams[10:12], uint16(len(payload))) // DataLength
		le.PutUint16(rParams[12:14], uint16(smb1.HeaderSize+1+len(rParams)+2))
		sendResponse(t, server, smb1.CommandReadAndX, req.Header.MID, rParams, payload)

		req = recvRequest(t, server)
		require.Equal(t, smb1.CommandClose, req.Header.Command)
		sendResponse(t, server, smb1.CommandClose, req.Header.MID, nil, nil)
	}()

	var sink bytes.Buffer
	require.NoError(t, c.GetFile(context.Background(), `\file.txt`, &sink))
	require.Equal(t, payload, sink.Bytes())
}

func TestPutFileWritesFullContentsInOneChunk(t *testing.T) {
	c, server := newPipeClient(StateReady)
	defer server.Close()
	c.t.SetMaxBufferSize(16384)

	payload := []byte("file contents")
	go func() {
		req := recvRequest(t, server)
		require.Equal(t, smb1.CommandNTCreateAndX, req.Header.Command)
		sendResponse(t, server, smb1.CommandNTCreateAndX, req.Header.MID, buildNTCreateAndXResponseParams(3, 0, false), nil)

		req = recvRequest(t, server)
		require.Equal(t, smb1.CommandWriteAndX, req.Header.Command)
		require.Equal(t, payload, req.Data[len(req.Data)-len(payload):])
		wParams := make([]byte, 6)
		binary.LittleEndian.PutUint16(wParams[4:6], uint16(len(payload))) // Count
		sendResponse(t, server, smb1.CommandWriteAndX, req.Header.MID, wParams, nil)

		req = recvRequest(t, server)
		require.Equal(t, smb1.CommandClose, req.Header.Command)
		sendResponse(t, server, smb1.CommandClose, req.Header.MID, nil, nil)
	}()

	require.NoError(t, c.PutFile(context.Background(), `\file.txt`, bytes.NewReader(payload)))
}

func TestMkdirRmdirDeleteRenameEcho(t *testing.T) {
	c, server := newPipeClient(StateReady)
	defer server.Close()

	seen := make(chan byte, 5)
	go func() {
		for i := 0; i < 5; i++ {
			req := recvRequest(t, server)
			seen <- req.Header.Command
			sendResponse(t, server, req.Header.Command, req.Header.MID, nil, nil)
		}
	}()

	require.NoError(t, c.Mkdir(context.Background(), `\newdir`))
	require.NoError(t, c.Rmdir(context.Background(), `\newdir`))
	require.NoError(t, c.Delete(context.Background(), `\file.txt`))
	require.NoError(t, c.Rename(context.Background(), `\old.txt`, `\new.txt`))
	require.NoError(t, c.Echo(context.Background(), []byte("ping")))

	require.Equal(t, smb1.CommandCreateDirectory, <-seen)
	require.Equal(t, smb1.CommandDeleteDirectory, <-seen)
	require.Equal(t, smb1.CommandDelete, <-seen)
	require.Equal(t, smb1.CommandRename, <-seen)
	require.Equal(t, smb1.CommandEcho, <-seen)
}

func TestMkdirRejectsWrongState(t *testing.T) {
	c := &Client{state: StateAuthed}
	err := c.Mkdir(context.Background(), `\x`)
	var se *n3dserr.StateError
	require.ErrorAs(t, err, &se)
}

func TestFailTransitionsToClosedOnNetworkError(t *testing.T) {
	c := &Client{state: StateReady}
	err := c.fail(n3dserr.NewNetworkError(n3dserr.NetworkReset, "send", nil))
	require.Error(t, err)
	require.Equal(t, StateClosed, c.State())
}

func TestFailTransitionsToClosedOnProtocolError(t *testing.T) {
	c := &Client{state: StateReady}
	err := c.fail(n3dserr.NewProtocolError("bad frame", nil))
	require.Error(t, err)
	require.Equal(t, StateClosed, c.State())
}

func TestFailLeavesStateOnNilError(t *testing.T) {
	c := &Client{state: StateReady}
	require.NoError(t, c.fail(nil))
	require.Equal(t, StateReady, c.State())
}

func TestFailLeavesStateOnArgumentError(t *testing.T) {
	c := &Client{state: StateReady}
	err := c.fail(n3dserr.NewArgumentError("path", "empty"))
	require.Error(t, err)
	require.Equal(t, StateReady, c.State())
}

func TestCloseIsNoOpWhenAlreadyClosed(t *testing.T) {
	c := &Client{state: StateClosed}
	require.NoError(t, c.Close())
}

func TestValidatePathRejectsForwardSlash(t *testing.T) {
	require.Error(t, validatePath(`\foo/bar`))
}

func TestValidatePathRejectsEmpty(t *testing.T) {
	require.Error(t, validatePath(""))
}

func TestValidatePathAcceptsWellFormed(t *testing.T) {
	require.NoError(t, validatePath(`\dir\file.txt`))
}
