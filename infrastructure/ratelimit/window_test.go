package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowID_SameWindowSharesIdentifier(t *testing.T) {
	window := 60 * time.Second
	base := time.Unix(1700000040, 0)

	id1 := WindowID(base, window)
	id2 := WindowID(base.Add(19*time.Second), window)

	assert.Equal(t, id1, id2)
}

func TestWindowID_RolloverChangesIdentifier(t *testing.T) {
	window := 60 * time.Second
	base := time.Unix(1700000040, 0) // 40s into the minute

	id1 := WindowID(base, window)
	id2 := WindowID(base.Add(20*time.Second), window)

	assert.Equal(t, id1+1, id2)
}

func TestWindowKey_Composition(t *testing.T) {
	now := time.Unix(1700000000, 0)
	key := WindowKey("unauth_ip:203.0.113.5", now, 60*time.Second)

	assert.Equal(t, "ratelimit:unauth_ip:203.0.113.5:28333333", key)
}

func TestUntilRollover(t *testing.T) {
	window := 60 * time.Second

	// 40 seconds into the window: 20 remain.
	now := time.Unix(1700000040, 0)
	assert.Equal(t, 20*time.Second, UntilRollover(now, window))

	// Exactly on the boundary: a full window remains.
	now = time.Unix(1700000040, 0).Add(20 * time.Second)
	assert.Equal(t, 60*time.Second, UntilRollover(now, window))
}

func TestUntilRollover_ZeroWindow(t *testing.T) {
	assert.Equal(t, time.Duration(0), UntilRollover(time.Now(), 0))
}
