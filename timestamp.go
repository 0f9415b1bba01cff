package shikijin

import (
	"fmt"
	"math"
	"time"

	"github.com/araddon/dateparse"
)

// Timestamp is an instant with microsecond resolution, stored as microseconds
// since the Unix epoch.
type Timestamp int64

// Now returns the current time as a Timestamp.
func Now() Timestamp { return FromTime(time.Now()) }

// FromTime converts a calendar time.
func FromTime(t time.Time) Timestamp { return Timestamp(t.UnixMicro()) }

// FromUnix converts fractional epoch seconds.
func FromUnix(sec float64) Timestamp { return Timestamp(math.Round(sec * 1e6)) }

// ParseTimestamp parses common textual date formats (RFC 3339, "2006/01/02 15:04:05",
// "Jan 2, 2006", ...). Strings without a zone are read as UTC.
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("shikijin: parse timestamp %q: %w", s, err)
	}
	return FromTime(t), nil
}

func (ts Timestamp) Milliseconds() int64 { return int64(ts) / 1000 }
func (ts Timestamp) Microseconds() int64 { return int64(ts) }

// Time returns the calendar time in UTC.
func (ts Timestamp) Time() time.Time { return time.UnixMicro(int64(ts)).UTC() }

func (ts Timestamp) IsZero() bool { return ts == 0 }

func (ts Timestamp) String() string { return ts.Time().Format(time.RFC3339Nano) }
