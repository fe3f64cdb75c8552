package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionIDCompare(t *testing.T) {
	a := SessionID{1}
	b := SessionID{2}

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestNewSessionIDIsUnique(t *testing.T) {
	a := NewSessionID()
	b := NewSessionID()
	assert.NotEqual(t, a, b)
}

func TestTimestampCompare(t *testing.T) {
	a := Timestamp{Counter: 1, SID: SessionID{1}}
	b := Timestamp{Counter: 2, SID: SessionID{1}}

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.Equal(t, 0, a.Compare(a))

	// Counter ties break on the session ID, so the order is total.
	c := Timestamp{Counter: 1, SID: SessionID{2}}
	assert.Equal(t, -1, a.Compare(c))
	assert.Equal(t, 1, c.Compare(a))
}

func TestTimestampSub(t *testing.T) {
	a := Timestamp{Counter: 10}
	b := Timestamp{Counter: 4}

	assert.Equal(t, uint64(6), a.Sub(b))
	assert.Zero(t, b.Sub(a))
}

func TestTimestampZero(t *testing.T) {
	assert.True(t, ZeroTimestamp.IsZero())
	assert.False(t, Timestamp{Counter: 1}.IsZero())
}

func TestTimestampJSONRoundTrip(t *testing.T) {
	ts := Timestamp{Counter: 42, SID: NewSessionID()}

	data, err := json.Marshal(ts)
	require.NoError(t, err)

	var decoded Timestamp
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ts, decoded)
}

func TestSessionClock(t *testing.T) {
	sid := NewSessionID()
	clock := NewSessionClock(sid)

	first := clock.Now()
	second := clock.Now()

	assert.Equal(t, sid, first.SID)
	assert.True(t, first.Before(second))
	assert.Equal(t, uint64(2), clock.Counter())
}

func TestSessionClockWitness(t *testing.T) {
	clock := NewSessionClock(NewSessionID())
	clock.Now()

	clock.Witness(Timestamp{Counter: 100, SID: NewSessionID()})
	assert.Equal(t, uint64(101), clock.Now().Counter)

	// Witnessing an older timestamp never rewinds the clock.
	clock.Witness(Timestamp{Counter: 5})
	assert.Equal(t, uint64(102), clock.Now().Counter)
}
