// Package client implements the connection handshake (NBSS SESSION_REQUEST,
// NEGOTIATE, SESSION_SETUP_ANDX, TREE_CONNECT_ANDX) and file-oriented verbs
// of the microSD Management protocol (spec.md §4.2), driving package
// transport and presenting a typed, state-checked API to callers.
package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"unicode/utf16"

	"github.com/jfjallid/golog"

	"github.com/JohnDeved/n3ds-smb/n3dserr"
	"github.com/JohnDeved/n3ds-smb/ntlm"
	"github.com/JohnDeved/n3ds-smb/smb1"
	"github.com/JohnDeved/n3ds-smb/spnego"
	"github.com/JohnDeved/n3ds-smb/transport"
)

var log = golog.Get("client")

// State is one of the explicit lifecycle states from spec.md §4.2.
type State int

const (
	StateClosed State = iota
	StateTCPOpen
	StateNBSSReady
	StateNegotiated
	StateAuthed
	StateReady
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateTCPOpen:
		return "TCP_OPEN"
	case StateNBSSReady:
		return "NBSS_READY"
	case StateNegotiated:
		return "NEGOTIATED"
	case StateAuthed:
		return "AUTHED"
	case StateReady:
		return "READY"
	default:
		return "UNKNOWN"
	}
}

// DirEntry is one entry returned by Listdir.
type DirEntry = smb1.DirEntry

// AccessMode and Disposition mirror the semantic enums package smb1
// exposes for Open; re-exported so callers never need to import smb1
// directly.
type AccessMode = smb1.AccessMode

const (
	AccessRead      = smb1.AccessRead
	AccessWrite     = smb1.AccessWrite
	AccessReadWrite = smb1.AccessReadWrite
)

type Disposition = smb1.Disposition

const (
	OpenExisting = smb1.OpenExisting
	CreateNew    = smb1.CreateNew
	OverwriteIf  = smb1.OverwriteIf
	OpenIfExists = smb1.OpenIfExists
)

// DiskInfo is the result of DiskInfo: total/free/used bytes on the share.
type DiskInfo struct {
	TotalBytes uint64
	FreeBytes  uint64
	UsedBytes  uint64
}

// maxPathUnits is the longest path (in UTF-16 code units) this client
// accepts, per spec.md §8 boundary behaviors ("near 255 UTF-16 code
// units").
const maxPathUnits = 255

// shareName is the fixed share this client connects to; the server only
// exposes the microSD card under this name (spec.md §4.2 step 5).
const shareName = `microSD`

// Client drives one Transport through the handshake and file verbs. It is
// not safe for concurrent use (spec.md §5): exactly one call may be
// outstanding at a time.
type Client struct {
	ip          net.IP
	netbiosName string

	t     *transport.Transport
	state State
}

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// NewClient builds a Client targeting ip, identifying the server by its
// NetBIOS name (used for both SESSION_REQUEST and the TREE_CONNECT_ANDX
// UNC path).
func NewClient(ip net.IP, netbiosName string, opts ...ClientOption) *Client {
	c := &Client{ip: ip, netbiosName: netbiosName, state: StateClosed}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) requireState(op string, want State) error {
	if c.state != want {
		return n3dserr.NewStateError(op, c.state.String(), want.String())
	}
	return nil
}

// transition moves the client's state. Failing closed on a Network or
// Protocol error (the "any state --fatal I/O error--> CLOSED" edge in
// spec.md §4.2's state machine) is done by fail, not here.
func (c *Client) transition(next State) { c.state = next }

func (c *Client) fail(err error) error {
	if err == nil {
		return nil
	}
	var ne *n3dserr.NetworkError
	var pe *n3dserr.ProtocolError
	if asNetwork(err, &ne) || asProtocol(err, &pe) {
		c.state = StateClosed
	}
	return err
}

func asNetwork(err error, target **n3dserr.NetworkError) bool {
	ne, ok := err.(*n3dserr.NetworkError)
	if ok {
		*target = ne
	}
	return ok
}

func asProtocol(err error, target **n3dserr.ProtocolError) bool {
	pe, ok := err.(*n3dserr.ProtocolError)
	if ok {
		*target = pe
	}
	return ok
}

// Connect drives the full handshake: TCP connect, NBSS SESSION_REQUEST,
// NEGOTIATE, SESSION_SETUP_ANDX, TREE_CONNECT_ANDX (spec.md §4.2 steps
// 1-5). On success the client is in state READY.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.requireState("connect", StateClosed); err != nil {
		return err
	}

	t, err := transport.Dial(ctx, c.ip, c.netbiosName)
	if err != nil {
		return c.fail(err)
	}
	c.t = t
	c.transition(StateNBSSReady)
	log.Debugf("nbss session ready with %s", c.netbiosName)

	if err := c.negotiate(ctx); err != nil {
		return c.fail(err)
	}
	c.transition(StateNegotiated)

	if err := c.sessionSetup(ctx); err != nil {
		return c.fail(err)
	}
	c.transition(StateAuthed)

	if err := c.treeConnect(ctx); err != nil {
		return c.fail(err)
	}
	c.transition(StateReady)
	log.Infof("connected to %s (%s)", c.netbiosName, c.ip)
	return nil
}

func (c *Client) negotiate(ctx context.Context) error {
	data := smb1.BuildNegotiateRequestData()
	msg, err := c.t.SendRecv(ctx, smb1.CommandNegotiate, nil, data)
	if err != nil {
		return err
	}
	resp, err := smb1.ParseNegotiateResponse(msg)
	if err != nil {
		return n3dserr.NewProtocolError("parse negotiate response", err)
	}
	if resp.DialectIndex != 0 {
		return n3dserr.NewProtocolError(fmt.Sprintf("server selected unexpected dialect index %d", resp.DialectIndex), nil)
	}
	c.t.SetMaxBufferSize(resp.MaxBufferSize)
	return nil
}

func (c *Client) sessionSetup(ctx context.Context) error {
	blob, err := spnego.BuildNegTokenInit(ntlm.BuildNegotiateMessage())
	if err != nil {
		return n3dserr.NewProtocolError("build ntlm negotiate blob", err)
	}
	params, data := smb1.BuildSessionSetupAndXRequest(c.t.MaxBufferSize(), blob)
	msg, err := c.t.SendRecv(ctx, smb1.CommandSessionSetupAndX, params, data)
	if err != nil {
		return err
	}
	if _, err := smb1.ParseSessionSetupAndXResponse(msg); err != nil {
		return n3dserr.NewProtocolError("parse session_setup_andx response", err)
	}
	c.t.SetUserID(msg.Header.UID)
	return nil
}

func (c *Client) treeConnect(ctx context.Context) error {
	path := fmt.Sprintf(`\\%s\%s`, c.netbiosName, shareName)
	params, data := smb1.BuildTreeConnectAndXRequest(path, "?????")
	msg, err := c.t.SendRecv(ctx, smb1.CommandTreeConnectAndX, params, data)
	if err != nil {
		return err
	}
	if _, err := smb1.ParseTreeConnectAndXResponse(msg); err != nil {
		return n3dserr.NewProtocolError("parse tree_connect_andx response", err)
	}
	c.t.SetTreeID(msg.Header.TID)
	return nil
}

// Close performs logoff/tree-disconnect and releases the transport. It is
// safe to call from any state; calling it on an already-closed client is
// a no-op.
func (c *Client) Close() error {
	if c.state == StateClosed || c.t == nil {
		return nil
	}
	err := c.t.Close(context.Background())
	c.state = StateClosed
	return err
}

// validatePath enforces spec.md §4.2's path rules: backslash separators,
// no "/", no "..", no NUL, and a length bound near 255 UTF-16 code units.
func validatePath(path string) error {
	if path == "" {
		return n3dserr.NewArgumentError("path", "empty")
	}
	if strings.Contains(path, "/") {
		return n3dserr.NewArgumentError("path", "contains forbidden '/' separator")
	}
	if strings.Contains(path, "..") {
		return n3dserr.NewArgumentError("path", "contains forbidden '..' component")
	}
	if strings.ContainsRune(path, 0) {
		return n3dserr.NewArgumentError("path", "contains NUL byte")
	}
	if len(utf16.Encode([]rune(path))) > maxPathUnits {
		return n3dserr.NewArgumentError("path", fmt.Sprintf("exceeds %d UTF-16 code units", maxPathUnits))
	}
	return nil
}

// Listdir lists the contents of path, honoring FIND_FIRST2/FIND_NEXT2
// pagination and filtering "." and ".." (spec.md §4.2 list verb).
func (c *Client) Listdir(ctx context.Context, path string) ([]smb1.DirEntry, error) {
	if err := c.requireState("listdir", StateReady); err != nil {
		return nil, err
	}
	if err := validatePath(path); err != nil {
		return nil, err
	}

	pattern := strings.TrimSuffix(path, `\`) + `\*`
	findParams := smb1.BuildFindFirst2Request(pattern)
	t2Params, t2Data := buildTrans2Request(smb1.Trans2FindFirst2, findParams)
	msg, err := c.t.SendRecv(ctx, smb1.CommandTransaction2, t2Params, t2Data)
	if err != nil {
		return nil, c.fail(err)
	}
	t2, err := smb1.ParseTrans2Response(msg)
	if err != nil {
		return nil, c.fail(n3dserr.NewProtocolError("parse find_first2 response", err))
	}
	fr, err := smb1.ParseFindFirst2ResponseParams(t2.Parameters)
	if err != nil {
		return nil, c.fail(n3dserr.NewProtocolError("parse find_first2 params", err))
	}
	entries, err := smb1.ParseFindFileBothDirectoryInfo(t2.Data)
	if err != nil {
		return nil, c.fail(n3dserr.NewProtocolError("parse find_first2 directory info", err))
	}

	endOfSearch := fr.EndOfSearch
	lastName := ""
	if len(entries) > 0 {
		lastName = entries[len(entries)-1].Name
	}
	for !endOfSearch {
		nextParams := smb1.BuildFindNext2Request(fr.SID, lastName)
		t2Params, t2Data := buildTrans2Request(smb1.Trans2FindNext2, nextParams)
		msg, err := c.t.SendRecv(ctx, smb1.CommandTransaction2, t2Params, t2Data)
		if err != nil {
			return nil, c.fail(err)
		}
		t2, err := smb1.ParseTrans2Response(msg)
		if err != nil {
			return nil, c.fail(n3dserr.NewProtocolError("parse find_next2 response", err))
		}
		nr, err := smb1.ParseFindNext2ResponseParams(t2.Parameters)
		if err != nil {
			return nil, c.fail(n3dserr.NewProtocolError("parse find_next2 params", err))
		}
		more, err := smb1.ParseFindFileBothDirectoryInfo(t2.Data)
		if err != nil {
			return nil, c.fail(n3dserr.NewProtocolError("parse find_next2 directory info", err))
		}
		entries = append(entries, more...)
		endOfSearch = nr.EndOfSearch
		if len(more) > 0 {
			lastName = more[len(more)-1].Name
		}
	}

	if entries == nil {
		entries = []smb1.DirEntry{}
	}
	return entries, nil
}

// buildTrans2Request wraps smb1.BuildTrans2Request with the max
// parameter/data counts this client always uses: generous enough for any
// FIND_FIRST2/FIND_NEXT2/QUERY_FS_INFORMATION response this server sends.
func buildTrans2Request(subcommand uint16, transParams []byte) (params, data []byte) {
	return smb1.BuildTrans2Request(subcommand, transParams, nil, 8, 16384)
}

// openFile performs NT_CREATE_ANDX and returns the decoded response.
func (c *Client) openFile(ctx context.Context, path string, access smb1.AccessMode, disposition smb1.Disposition, extraCreateOptions uint32) (*smb1.NTCreateAndXResponse, error) {
	if err := c.requireState("open", StateReady); err != nil {
		return nil, err
	}
	if err := validatePath(path); err != nil {
		return nil, err
	}
	params, data := smb1.BuildNTCreateAndXRequest(path, access, disposition, extraCreateOptions)
	msg, err := c.t.SendRecv(ctx, smb1.CommandNTCreateAndX, params, data)
	if err != nil {
		return nil, c.fail(err)
	}
	resp, err := smb1.ParseNTCreateAndXResponse(msg)
	if err != nil {
		return nil, c.fail(n3dserr.NewProtocolError("parse nt_create_andx response", err))
	}
	return resp, nil
}

// closeFile performs SMB_COM_CLOSE, best-effort; callers use it both on
// the happy path and to clean up after a failed read/write.
func (c *Client) closeFile(ctx context.Context, fid uint16) {
	params := smb1.BuildCloseRequest(fid)
	if _, err := c.t.SendRecv(ctx, smb1.CommandClose, params, nil); err != nil {
		log.Debugf("best-effort close of fid %d failed: %v", fid, err)
	}
}

// readChunkSize returns the largest READ_ANDX length this client will
// request in one round trip, bounded by the server's MaxBufferSize minus
// a conservative header overhead estimate.
func (c *Client) readChunkSize() uint32 {
	const overhead = 64
	max := c.t.MaxBufferSize()
	if max <= overhead {
		return 4096
	}
	return max - overhead
}

// GetFile reads path in full, writing its bytes to sink. A zero-byte file
// succeeds and writes nothing (spec.md §8 boundary behavior).
func (c *Client) GetFile(ctx context.Context, path string, sink io.Writer) error {
	resp, err := c.openFile(ctx, path, smb1.AccessRead, smb1.OpenExisting, 0)
	if err != nil {
		return err
	}
	defer c.closeFile(ctx, resp.FID)

	var offset uint64
	chunk := c.readChunkSize()
	for offset < resp.EndOfFile {
		length := chunk
		if remaining := resp.EndOfFile - offset; remaining < uint64(length) {
			length = uint32(remaining)
		}
		params := smb1.BuildReadAndXRequest(resp.FID, offset, length)
		msg, err := c.t.SendRecv(ctx, smb1.CommandReadAndX, params, nil)
		if err != nil {
			return c.fail(err)
		}
		rr, err := smb1.ParseReadAndXResponse(msg)
		if err != nil {
			return c.fail(n3dserr.NewProtocolError("parse read_andx response", err))
		}
		if _, err := sink.Write(rr.Data); err != nil {
			return n3dserr.NewNetworkError(n3dserr.NetworkClosed, "sink write", err)
		}
		if len(rr.Data) == 0 {
			break
		}
		offset += uint64(len(rr.Data))
	}
	return nil
}

// PutFile writes all bytes from src to path, creating or overwriting it,
// chunked to the server's MaxBufferSize (spec.md §8 boundary behavior).
func (c *Client) PutFile(ctx context.Context, path string, src io.Reader) error {
	resp, err := c.openFile(ctx, path, smb1.AccessWrite, smb1.OverwriteIf, 0)
	if err != nil {
		return err
	}
	defer c.closeFile(ctx, resp.FID)

	buf := make([]byte, c.readChunkSize())
	var offset uint64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			params, data := smb1.BuildWriteAndXRequest(resp.FID, offset, buf[:n])
			msg, err := c.t.SendRecv(ctx, smb1.CommandWriteAndX, params, data)
			if err != nil {
				return c.fail(err)
			}
			if _, err := smb1.ParseWriteAndXResponse(msg); err != nil {
				return c.fail(n3dserr.NewProtocolError("parse write_andx response", err))
			}
			offset += uint64(n)
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return n3dserr.NewNetworkError(n3dserr.NetworkClosed, "src read", readErr)
		}
	}
}

// Mkdir creates a directory at path.
func (c *Client) Mkdir(ctx context.Context, path string) error {
	if err := c.requireState("mkdir", StateReady); err != nil {
		return err
	}
	if err := validatePath(path); err != nil {
		return err
	}
	data := smb1.BuildCreateDirectoryRequest(path)
	_, err := c.t.SendRecv(ctx, smb1.CommandCreateDirectory, nil, data)
	return c.fail(err)
}

// Rmdir removes the (empty) directory at path.
func (c *Client) Rmdir(ctx context.Context, path string) error {
	if err := c.requireState("rmdir", StateReady); err != nil {
		return err
	}
	if err := validatePath(path); err != nil {
		return err
	}
	data := smb1.BuildDeleteDirectoryRequest(path)
	_, err := c.t.SendRecv(ctx, smb1.CommandDeleteDirectory, nil, data)
	return c.fail(err)
}

// Delete removes the file at path, using the BufferFormat alignment
// workaround from spec.md §9.
func (c *Client) Delete(ctx context.Context, path string) error {
	if err := c.requireState("delete", StateReady); err != nil {
		return err
	}
	if err := validatePath(path); err != nil {
		return err
	}
	params, data := smb1.BuildDeleteRequest(path)
	_, err := c.t.SendRecv(ctx, smb1.CommandDelete, params, data)
	return c.fail(err)
}

// Rename moves oldPath to newPath, using the same alignment workaround as
// Delete for both paths.
func (c *Client) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := c.requireState("rename", StateReady); err != nil {
		return err
	}
	if err := validatePath(oldPath); err != nil {
		return err
	}
	if err := validatePath(newPath); err != nil {
		return err
	}
	params, data := smb1.BuildRenameRequest(oldPath, newPath)
	_, err := c.t.SendRecv(ctx, smb1.CommandRename, params, data)
	return c.fail(err)
}

// Echo sends payload as an SMB_COM_ECHO liveness probe and discards the
// reply; used to keep a connection alive while idle (spec.md §8 scenario
// 6).
func (c *Client) Echo(ctx context.Context, payload []byte) error {
	if err := c.requireState("echo", StateReady); err != nil {
		return err
	}
	params, data := smb1.BuildEchoRequest(payload)
	_, err := c.t.SendRecv(ctx, smb1.CommandEcho, params, data)
	return c.fail(err)
}

// DiskInfo queries the share's total/free capacity via TRANS2
// QUERY_FS_INFORMATION at level SMB_QUERY_FS_SIZE_INFO.
func (c *Client) DiskInfo(ctx context.Context) (DiskInfo, error) {
	if err := c.requireState("disk_info", StateReady); err != nil {
		return DiskInfo{}, err
	}
	fsParams := smb1.BuildQueryFSInformationRequest(smb1.InfoLevelQueryFSSizeInfo)
	t2Params, t2Data := buildTrans2Request(smb1.Trans2QueryFSInformation, fsParams)
	msg, err := c.t.SendRecv(ctx, smb1.CommandTransaction2, t2Params, t2Data)
	if err != nil {
		return DiskInfo{}, c.fail(err)
	}
	t2, err := smb1.ParseTrans2Response(msg)
	if err != nil {
		return DiskInfo{}, c.fail(n3dserr.NewProtocolError("parse query_fs_information response", err))
	}
	fs, err := smb1.ParseFSSizeInfo(t2.Data)
	if err != nil {
		return DiskInfo{}, c.fail(n3dserr.NewProtocolError("parse fs size info", err))
	}
	total := fs.TotalBytes()
	free := fs.FreeBytes()
	return DiskInfo{TotalBytes: total, FreeBytes: free, UsedBytes: total - free}, nil
}

// State returns the client's current lifecycle state.
func (c *Client) State() State { return c.state }
