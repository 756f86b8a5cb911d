// Package n3dsmb is the public facade over the client and discovery
// packages (spec.md §6, SPEC_FULL.md §6): Discover locates the microSD
// Management server, Client speaks SMB1 to it once found.
package n3dsmb

import (
	"context"
	"net"

	"github.com/JohnDeved/n3ds-smb/client"
	"github.com/JohnDeved/n3ds-smb/discovery"
)

// Discover locates the microSD Management server on the LAN. See
// discovery.Discover for the full algorithm (cache validation,
// WS-Discovery probe, DPWS metadata fetch, interactive fallback).
func Discover(ctx context.Context, opts discovery.Options) (discovery.Result, error) {
	return discovery.Discover(ctx, opts)
}

// Client, DirEntry, DiskInfo and ClientOption are re-exported so callers
// of this package never need to import the client package directly.
type (
	Client       = client.Client
	DirEntry     = client.DirEntry
	DiskInfo     = client.DiskInfo
	ClientOption = client.ClientOption
)

// NewClient constructs a Client targeting ip, authenticating against the
// NetBIOS name netbiosName (see client.NewClient).
func NewClient(ip net.IP, netbiosName string, opts ...ClientOption) *Client {
	return client.NewClient(ip, netbiosName, opts...)
}
