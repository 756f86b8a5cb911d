package discovery

import (
	"net"
	"time"

	"github.com/JohnDeved/n3ds-smb/config"
)

// Timing is the discovery timing breakdown for observability (spec.md
// §3), returned on Result. Discover records nothing in internal/metrics.
type Timing struct {
	CacheProbe    time.Duration
	Multicast     time.Duration
	MetadataFetch time.Duration
	Total         time.Duration
}

// Result is the outcome of a successful Discover call: the target's IPv4
// address and resolved NetBIOS name, plus the timing breakdown.
type Result struct {
	IP     net.IP
	Name   string
	Timing Timing
}

// Options configures one Discover call.
type Options struct {
	// CachePath, if non-empty, names the on-disk cache file to validate
	// first (spec.md §4.3 step 1). Empty skips straight to multicast.
	CachePath string

	// Config supplies the timeouts; Default() is used if the zero value
	// is passed. Its port and self-name fields are not read by Discover.
	Config config.Config

	// AllowInteractive controls whether a failed discovery returns a
	// DiscoveryNeedsUserInput error carrying partial info (true) or a
	// more specific terminal error (false), per spec.md §4.3 step 4.
	AllowInteractive bool
}
