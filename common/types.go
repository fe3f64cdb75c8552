package common

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// SessionID identifies one replica. It is implemented as a UUID v7 which
// provides time-ordered values.
type SessionID uuid.UUID

// NilSessionID is the zero value for SessionID.
var NilSessionID SessionID

// NewSessionID creates a new SessionID using UUID v7.
// It panics if the UUID cannot be created.
func NewSessionID() SessionID {
	const retry = 3

	var lastErr error
	var id uuid.UUID
	for i := 0; i < retry; i++ {
		id, lastErr = uuid.NewV7()
		if lastErr == nil {
			break
		}
	}

	if lastErr != nil {
		panic(lastErr)
	}

	return SessionID(id)
}

// String returns the string representation of the SessionID.
func (s SessionID) String() string {
	return uuid.UUID(s).String()
}

// Compare compares two SessionIDs lexicographically.
// Returns:
//
//	-1 if s < other
//	 0 if s == other
//	 1 if s > other
func (s SessionID) Compare(other SessionID) int {
	for i := 0; i < len(uuid.UUID(s)); i++ {
		if uuid.UUID(s)[i] < uuid.UUID(other)[i] {
			return -1
		}
		if uuid.UUID(s)[i] > uuid.UUID(other)[i] {
			return 1
		}
	}
	return 0
}

// MarshalText implements the encoding.TextMarshaler interface.
func (s SessionID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(s).String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (s *SessionID) UnmarshalText(text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return fmt.Errorf("invalid UUID format: %w", err)
	}
	*s = SessionID(u)
	return nil
}

// Timestamp is the instant attached to every structural touch and value write.
// It is a Lamport-style pair: counters order events, the session ID breaks
// counter ties so the order is total across replicas. The engine only ever
// compares timestamps; Sub exists solely so Purge can measure tombstone age.
type Timestamp struct {
	Counter uint64    `json:"cnt"`
	SID     SessionID `json:"sid"`
}

// ZeroTimestamp is the timestamp of the root sentinel.
var ZeroTimestamp Timestamp

// Compare compares two timestamps, counter first, session ID second.
// Returns:
//
//	-1 if t < other
//	 0 if t == other
//	 1 if t > other
func (t Timestamp) Compare(other Timestamp) int {
	if t.Counter < other.Counter {
		return -1
	}
	if t.Counter > other.Counter {
		return 1
	}
	return t.SID.Compare(other.SID)
}

// Before reports whether t is strictly older than other.
func (t Timestamp) Before(other Timestamp) bool {
	return t.Compare(other) < 0
}

// After reports whether t is strictly newer than other.
func (t Timestamp) After(other Timestamp) bool {
	return t.Compare(other) > 0
}

// IsZero reports whether t is the zero timestamp.
func (t Timestamp) IsZero() bool {
	return t.Counter == 0 && t.SID == NilSessionID
}

// Sub returns the counter distance from other to t, saturating at zero.
func (t Timestamp) Sub(other Timestamp) uint64 {
	if t.Counter < other.Counter {
		return 0
	}
	return t.Counter - other.Counter
}

// String returns a string representation of the timestamp.
func (t Timestamp) String() string {
	data, _ := json.Marshal(t)
	return string(data)
}

// Clock is the host-supplied timestamp source. Values returned on one replica
// must be strictly increasing call over call.
type Clock interface {
	Now() Timestamp
}

// SessionClock is the default Clock: a per-replica counter stamped with the
// replica's session ID.
type SessionClock struct {
	sid     SessionID
	counter uint64
}

// NewSessionClock creates a SessionClock for the given session.
func NewSessionClock(sid SessionID) *SessionClock {
	return &SessionClock{sid: sid}
}

// Now returns the next timestamp in the sequence.
func (c *SessionClock) Now() Timestamp {
	c.counter++
	return Timestamp{Counter: c.counter, SID: c.sid}
}

// Witness advances the clock past a remotely observed timestamp so that
// subsequent local timestamps win Lamport comparisons against it.
func (c *SessionClock) Witness(ts Timestamp) {
	if ts.Counter > c.counter {
		c.counter = ts.Counter
	}
}

// SessionID returns the session the clock stamps its timestamps with.
func (c *SessionClock) SessionID() SessionID {
	return c.sid
}

// Counter returns the last issued counter value, e.g. for persisting the
// clock alongside replica state.
func (c *SessionClock) Counter() uint64 {
	return c.counter
}
