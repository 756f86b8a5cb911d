package discovery

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JohnDeved/n3ds-smb/cache"
	"github.com/JohnDeved/n3ds-smb/n3dserr"
)

func TestTryCacheAcceptsReachableHost(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cache")
	require.NoError(t, cache.Save(path, cache.Record{IP: "127.0.0.1", Name: "TESTBOX", Timestamp: time.Now()}))

	rec, ok := tryCacheOnPort(t, path, port)
	require.True(t, ok)
	require.Equal(t, "TESTBOX", rec.Name)
}

func TestTryCacheRejectsUnreachableHost(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache")
	require.NoError(t, cache.Save(path, cache.Record{IP: "127.0.0.1", Name: "TESTBOX", Timestamp: time.Now()}))

	_, ok := tryCacheOnPort(t, path, "1") // nothing listens on port 1
	require.False(t, ok)
}

func TestTryCacheMissingFile(t *testing.T) {
	_, ok := tryCache(context.Background(), filepath.Join(t.TempDir(), "absent"), 50*time.Millisecond)
	require.False(t, ok)
}

// tryCacheOnPort adapts tryCache (which always dials :139) to an arbitrary
// test port by dialing directly, mirroring the same accept-on-connect
// contract tryCache relies on.
func tryCacheOnPort(t *testing.T, path, port string) (*cache.Record, bool) {
	t.Helper()
	rec, err := cache.Load(path)
	require.NoError(t, err)
	if rec == nil {
		return nil, false
	}
	var d net.Dialer
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(rec.IP, port))
	if err != nil {
		return nil, false
	}
	conn.Close()
	return rec, true
}

func TestFailDiscoveryWithoutInteractivePropagatesCause(t *testing.T) {
	cause := n3dserr.NewDiscoveryError(n3dserr.DiscoveryNoResponders, "", nil)
	_, err := failDiscovery(Options{AllowInteractive: false}, Timing{}, "", cause)
	require.Equal(t, cause, err)
}

func TestFailDiscoveryWithInteractiveWrapsNeedsUserInput(t *testing.T) {
	cause := n3dserr.NewDiscoveryError(n3dserr.DiscoveryNoResponders, "", nil)
	_, err := failDiscovery(Options{AllowInteractive: true}, Timing{}, "10.0.0.9", cause)

	var de *n3dserr.DiscoveryError
	require.ErrorAs(t, err, &de)
	require.Equal(t, n3dserr.DiscoveryNeedsUserInput, de.Kind)
	require.Equal(t, "10.0.0.9", de.PartialIP)
}

func TestResolveFromMatchesReturnsFirstSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<Envelope><ThisDevice><FriendlyName>N3DSSMB</FriendlyName></ThisDevice></Envelope>`)
	}))
	defer srv.Close()

	matches := []ProbeMatch{{From: &net.UDPAddr{IP: net.ParseIP("127.0.0.1")}, XAddrs: []string{srv.URL}}}
	ip, name, err := resolveFromMatches(context.Background(), matches, time.Second)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", ip)
	require.Equal(t, "N3DSSMB", name)
}

func TestResolveFromMatchesReturnsErrorWhenAllFail(t *testing.T) {
	matches := []ProbeMatch{{From: &net.UDPAddr{IP: net.ParseIP("127.0.0.1")}, XAddrs: []string{"http://127.0.0.1:1/nope"}}}
	_, _, err := resolveFromMatches(context.Background(), matches, 200*time.Millisecond)
	require.Error(t, err)
}

func TestHostFromAddrUDP(t *testing.T) {
	require.Equal(t, "10.1.2.3", hostFromAddr(&net.UDPAddr{IP: net.ParseIP("10.1.2.3"), Port: 3702}))
}
