package discovery

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/JohnDeved/n3ds-smb/cache"
	"github.com/JohnDeved/n3ds-smb/config"
	"github.com/JohnDeved/n3ds-smb/n3dserr"
)

// Discover locates the microSD Management server on the LAN, following
// the order of attempts in spec.md §4.3: cache validation, WS-Discovery
// multicast probe, DPWS metadata fetch, then an interactive fallback
// error if nothing else worked.
func Discover(ctx context.Context, opts Options) (Result, error) {
	cfg := opts.Config
	if cfg.Timeouts.TotalBudget == 0 {
		cfg = config.Default()
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeouts.TotalBudget)
	defer cancel()

	var timing Timing

	if opts.CachePath != "" {
		probeStart := time.Now()
		if rec, ok := tryCache(ctx, opts.CachePath, cfg.Timeouts.CacheProbe); ok {
			timing.CacheProbe = time.Since(probeStart)
			timing.Total = time.Since(start)
			return Result{IP: net.ParseIP(rec.IP), Name: rec.Name, Timing: timing}, nil
		}
		timing.CacheProbe = time.Since(probeStart)
	}

	multicastStart := time.Now()
	matches, err := probe(ctx, cfg.Timeouts.MulticastWindow)
	timing.Multicast = time.Since(multicastStart)
	if err != nil {
		timing.Total = time.Since(start)
		return Result{Timing: timing}, err
	}
	if len(matches) == 0 {
		timing.Total = time.Since(start)
		return failDiscovery(opts, timing, "", n3dserr.NewDiscoveryError(n3dserr.DiscoveryNoResponders, "", nil))
	}

	metadataStart := time.Now()
	ip, name, metaErr := resolveFromMatches(ctx, matches, cfg.Timeouts.MetadataHTTP)
	timing.MetadataFetch = time.Since(metadataStart)
	timing.Total = time.Since(start)

	if metaErr != nil {
		return failDiscovery(opts, timing, ip, metaErr)
	}

	if opts.CachePath != "" {
		_ = cache.Save(opts.CachePath, cache.Record{IP: ip, Name: name, Timestamp: time.Now()})
	}

	return Result{IP: net.ParseIP(ip), Name: name, Timing: timing}, nil
}

// failDiscovery wraps the terminal error per spec.md §4.3 step 4: when
// interactive fallback is allowed, surface DiscoveryNeedsUserInput
// carrying whatever partial IP was found; otherwise propagate the
// original error.
func failDiscovery(opts Options, timing Timing, partialIP string, cause error) (Result, error) {
	if opts.AllowInteractive {
		return Result{Timing: timing}, n3dserr.NewDiscoveryError(n3dserr.DiscoveryNeedsUserInput, partialIP, cause)
	}
	return Result{Timing: timing}, cause
}

// tryCache validates a cached record with a short TCP probe to ip:139,
// accepting the cached name on success (spec.md §4.3 step 1). On any
// failure it returns ok=false so the caller falls through to full
// discovery without surfacing an error.
func tryCache(ctx context.Context, path string, timeout time.Duration) (*cache.Record, bool) {
	rec, err := cache.Load(path)
	if err != nil || rec == nil {
		return nil, false
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(probeCtx, "tcp", net.JoinHostPort(rec.IP, "139"))
	if err != nil {
		return nil, false
	}
	conn.Close()
	return rec, true
}

// resolveFromMatches fetches DPWS metadata for each ProbeMatch candidate,
// one goroutine per XAddrs entry per spec.md §5 (the candidate set is
// tiny; a hand-rolled sync.WaitGroup fan-out is appropriate, no
// goroutine-pool library needed), returning the first (ip, name) pair
// that resolves.
func resolveFromMatches(ctx context.Context, matches []ProbeMatch, timeout time.Duration) (ip, name string, err error) {
	type outcome struct {
		ip, name string
		err      error
	}

	results := make(chan outcome, len(matches)*2)
	var wg sync.WaitGroup
	for _, m := range matches {
		host := hostFromAddr(m.From)
		for _, xaddr := range m.XAddrs {
			wg.Add(1)
			go func(host, xaddr string) {
				defer wg.Done()
				friendlyName, ferr := fetchFriendlyName(ctx, xaddr, timeout)
				results <- outcome{ip: host, name: friendlyName, err: ferr}
			}(host, xaddr)
		}
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var lastErr error
	var firstIP string
	for r := range results {
		if firstIP == "" {
			firstIP = r.ip
		}
		if r.err == nil {
			return r.ip, r.name, nil
		}
		lastErr = r.err
	}
	return firstIP, "", lastErr
}

func hostFromAddr(addr net.Addr) string {
	if udpAddr, ok := addr.(*net.UDPAddr); ok {
		return udpAddr.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
