package inter

import (
	"time"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
)

// Timestamp is a point in time in nanoseconds since the Unix epoch.
type Timestamp uint64

// FromTime converts t, clamping times before the epoch to zero.
func FromTime(t time.Time) Timestamp {
	ns := t.UnixNano()
	if ns < 0 {
		return 0
	}
	return Timestamp(ns)
}

// FromUnix converts seconds since the epoch.
func FromUnix(sec int64) Timestamp {
	return Timestamp(sec) * Timestamp(time.Second)
}

// Bytes returns the big-endian encoding of the timestamp.
func (t Timestamp) Bytes() []byte {
	return bigendian.Uint64ToBytes(uint64(t))
}

// Unix returns whole seconds since the epoch.
func (t Timestamp) Unix() int64 {
	return int64(t) / int64(time.Second)
}

// Time converts the timestamp to time.Time.
func (t Timestamp) Time() time.Time {
	return time.Unix(0, int64(t)).UTC()
}

// String formats the timestamp as RFC 3339.
func (t Timestamp) String() string {
	return t.Time().Format(time.RFC3339Nano)
}
