package smb1

import "time"

// filetimeEpoch is 1601-01-01 00:00:00 UTC, the FILETIME epoch.
var filetimeEpoch = time.Date(1601, 1, 1, 0, 0, 0, 0, time.UTC)

// filetimeTicksPerSecond is the number of 100ns ticks in one second.
const filetimeTicksPerSecond = 10_000_000

// filetimeUnixOffset is the number of seconds from the FILETIME epoch to
// the Unix epoch (1970-01-01 00:00:00 UTC).
const filetimeUnixOffset = 11644473600

// FiletimeToTime converts a 64-bit FILETIME (100ns ticks since the
// FILETIME epoch) to a time.Time.
func FiletimeToTime(ft uint64) time.Time {
	seconds := int64(ft / filetimeTicksPerSecond)
	remainder := int64(ft % filetimeTicksPerSecond)
	return time.Unix(seconds-filetimeUnixOffset, remainder*100).UTC()
}

// TimeToFiletime converts a time.Time to a 64-bit FILETIME.
func TimeToFiletime(t time.Time) uint64 {
	return uint64(t.Unix()+filetimeUnixOffset)*filetimeTicksPerSecond + uint64(t.Nanosecond()/100)
}
