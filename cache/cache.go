// Package cache implements the on-disk discovery cache record: the last
// known (ip, name) pair, used to short-circuit full WS-Discovery when
// still valid (spec.md §3, §6). Consulted, never trusted blindly — the
// caller must always revalidate with at least a TCP probe (spec.md §9).
package cache

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Record is one cache entry: a single-line `ip\tname\ttimestamp` file at
// a caller-specified path (spec.md §6).
type Record struct {
	IP        string
	Name      string
	Timestamp time.Time
}

// Load reads and parses the cache file at path. A missing or corrupt file
// is treated as "no cache" (returns nil, nil), matching spec.md §6's
// "absent/corrupt file is treated as no cache".
func Load(path string) (*Record, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, nil
	}

	line := strings.TrimSpace(string(content))
	fields := strings.Split(line, "\t")
	if len(fields) != 3 {
		return nil, nil
	}
	unixSeconds, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, nil
	}
	if fields[0] == "" || fields[1] == "" {
		return nil, nil
	}
	return &Record{
		IP:        fields[0],
		Name:      fields[1],
		Timestamp: time.Unix(unixSeconds, 0).UTC(),
	}, nil
}

// Save writes r to path as a single `ip\tname\ttimestamp` line. Concurrent
// writers racing on the same path is acceptable per spec.md §5 (last
// writer wins; contents are advisory).
func Save(path string, r Record) error {
	line := fmt.Sprintf("%s\t%s\t%d\n", r.IP, r.Name, r.Timestamp.Unix())
	return os.WriteFile(path, []byte(line), 0o644)
}
