// Package transport owns the TCP socket to the microSD Management
// server, frames SMB1 messages inside NBSS envelopes, and maintains the
// per-connection TID/UID/PID/MID multiplex state (spec.md §4.1).
// Everything above "bytes on the wire" belongs to package client.
package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/jfjallid/golog"

	"github.com/JohnDeved/n3ds-smb/n3dserr"
	"github.com/JohnDeved/n3ds-smb/nbss"
	"github.com/JohnDeved/n3ds-smb/smb1"
)

var log = golog.Get("transport")

// SelfName is the NetBIOS "calling name" this client presents during
// SESSION_REQUEST. It is arbitrary per spec.md §4.1.
const SelfName = "N3DSSMB"

// pidCounter seeds each Transport's PID with a value distinct from other
// Transports in the same process; the exact value never matters to the
// server, only that it stays constant for the connection's lifetime.
var pidCounter uint32

// Transport owns one TCP connection and the SMB1 request/response cycle
// over it. It is not safe for concurrent use: the protocol is single-plex,
// exactly one request may be outstanding at a time (spec.md §5).
type Transport struct {
	conn net.Conn
	r    *bufio.Reader

	pid uint16
	mid uint16

	tid uint16
	uid uint16

	maxBufferSize uint32
}

// NewFromConn wraps an already-established connection in a Transport,
// seeding it with a fresh PID. It performs no handshake of its own; Dial
// uses it for the TCP case, and tests use it to drive the protocol over
// an in-memory net.Pipe.
func NewFromConn(conn net.Conn) *Transport {
	return &Transport{
		conn: conn,
		r:    bufio.NewReader(conn),
		pid:  uint16(atomic.AddUint32(&pidCounter, 1)),
	}
}

// Dial opens a TCP connection to ip:139 and performs the NBSS
// SESSION_REQUEST handshake against calledName (the server's NetBIOS
// name). It does not send NEGOTIATE; that is the caller's (package
// client's) responsibility.
func Dial(ctx context.Context, ip net.IP, calledName string) (*Transport, error) {
	var d net.Dialer
	addr := net.JoinHostPort(ip.String(), "139")
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, n3dserr.NewNetworkError(classifyDialErr(err), "dial", err)
	}

	t := NewFromConn(conn)

	if err := t.applyDeadline(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	payload := nbss.SessionRequest(calledName, SelfName)
	if err := nbss.WriteFrame(t.conn, nbss.TypeSessionRequest, payload); err != nil {
		conn.Close()
		return nil, n3dserr.NewNetworkError(n3dserr.NetworkClosed, "session_request write", err)
	}
	frame, err := nbss.ReadFrame(t.r)
	if err != nil {
		conn.Close()
		return nil, n3dserr.NewNetworkError(n3dserr.NetworkClosed, "session_request read", err)
	}
	switch frame.Type {
	case nbss.TypePositiveSessionResponse:
		log.Debugf("nbss session established with %s", calledName)
	case nbss.TypeNegativeSessionResponse:
		conn.Close()
		return nil, n3dserr.NewProtocolError("nbss session request refused", nil)
	default:
		conn.Close()
		return nil, n3dserr.NewProtocolError(fmt.Sprintf("unexpected nbss frame type 0x%02x during session request", frame.Type), nil)
	}

	return t, nil
}

func classifyDialErr(err error) n3dserr.NetworkKind {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return n3dserr.NetworkTimeout
	}
	return n3dserr.NetworkUnreachable
}

func (t *Transport) applyDeadline(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		return t.conn.SetDeadline(time.Time{})
	}
	return t.conn.SetDeadline(deadline)
}

// SetTreeID records the TID returned by TREE_CONNECT_ANDX.
func (t *Transport) SetTreeID(tid uint16) { t.tid = tid }

// SetUserID records the UID returned by SESSION_SETUP_ANDX.
func (t *Transport) SetUserID(uid uint16) { t.uid = uid }

// SetMaxBufferSize records the server's MaxBufferSize from the NEGOTIATE
// response, clamping read/write chunking.
func (t *Transport) SetMaxBufferSize(v uint32) { t.maxBufferSize = v }

// MaxBufferSize returns the server-reported upper bound on a single SMB
// payload.
func (t *Transport) MaxBufferSize() uint32 { return t.maxBufferSize }

// nextMID allocates a fresh, monotonically increasing (mod 2^16)
// multiplex ID.
func (t *Transport) nextMID() uint16 {
	t.mid++
	return t.mid
}

// SendRecv builds an SMB1 request for command with the given parameter
// words and data bytes, using the transport's current TID/UID/PID and a
// fresh MID, sends it, and reads back exactly one response frame. Per
// spec.md §4.1 step 2, a MID mismatch is a protocol error, not something
// to resynchronize from.
func (t *Transport) SendRecv(ctx context.Context, command byte, params, data []byte) (*smb1.Message, error) {
	if err := t.applyDeadline(ctx); err != nil {
		return nil, n3dserr.NewNetworkError(n3dserr.NetworkClosed, "set_deadline", err)
	}

	mid := t.nextMID()
	hdr := smb1.NewHeader(command, t.tid, t.pid, t.uid, mid)
	msg, err := smb1.BuildMessage(hdr, params, data)
	if err != nil {
		return nil, n3dserr.NewProtocolError("build request message", err)
	}
	log.Debugf("send command=0x%02x mid=%d tid=%d uid=%d pid=%d", command, mid, t.tid, t.uid, t.pid)

	if err := nbss.WriteFrame(t.conn, nbss.TypeSessionMessage, msg); err != nil {
		return nil, t.classifyIOErr("write", err)
	}

	frame, err := nbss.ReadFrame(t.r)
	if err != nil {
		return nil, t.classifyIOErr("read", err)
	}
	if frame.Type != nbss.TypeSessionMessage {
		return nil, n3dserr.NewProtocolError(fmt.Sprintf("unexpected nbss frame type 0x%02x", frame.Type), nil)
	}

	resp, err := smb1.ParseMessage(frame.Payload)
	if err != nil {
		return nil, n3dserr.NewProtocolError("parse response message", err)
	}
	if resp.Header.MID != mid {
		return nil, n3dserr.NewProtocolError(fmt.Sprintf("mid mismatch: sent %d, got %d", mid, resp.Header.MID), nil)
	}
	if resp.Header.Command != command {
		return nil, n3dserr.NewProtocolError(fmt.Sprintf("unexpected command in response: sent 0x%02x, got 0x%02x", command, resp.Header.Command), nil)
	}

	log.Debugf("recv command=0x%02x mid=%d status=0x%08x", command, mid, resp.Header.Status)
	if statusErr := n3dserr.NewSMBStatusError(command, resp.Header.Status); statusErr != nil {
		return resp, statusErr
	}
	return resp, nil
}

// classifyIOErr maps a raw I/O error from the socket to a Network error,
// distinguishing a deadline expiry (Timeout) from other failures.
func (t *Transport) classifyIOErr(op string, err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return n3dserr.NewNetworkError(n3dserr.NetworkTimeout, op, err)
	}
	return n3dserr.NewNetworkError(n3dserr.NetworkReset, op, err)
}

// Close performs a best-effort TREE_DISCONNECT + LOGOFF_ANDX, then closes
// the socket regardless of whether those succeed (spec.md §4.1 resource
// model).
func (t *Transport) Close(ctx context.Context) error {
	if t.tid != 0 {
		if _, err := t.SendRecv(ctx, smb1.CommandTreeDisconnect, nil, nil); err != nil {
			log.Debugf("best-effort tree_disconnect failed: %v", err)
		}
	}
	if t.uid != 0 {
		logoffParams := make([]byte, 4)
		logoffParams[0] = smb1.AndXNoCommand
		if _, err := t.SendRecv(ctx, smb1.CommandLogoffAndX, logoffParams, nil); err != nil {
			log.Debugf("best-effort logoff failed: %v", err)
		}
	}
	return t.conn.Close()
}
