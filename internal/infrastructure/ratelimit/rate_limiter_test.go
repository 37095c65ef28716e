package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketExhaustsAndReportsWait(t *testing.T) {
	bucket := NewTokenBucket(2, 1, time.Minute)

	allowed, _ := bucket.Allow()
	assert.True(t, allowed)
	allowed, _ = bucket.Allow()
	assert.True(t, allowed)

	allowed, wait := bucket.Allow()
	assert.False(t, allowed)
	assert.Greater(t, wait, time.Duration(0))
}

func TestTokenBucketRefills(t *testing.T) {
	bucket := NewTokenBucket(1, 1, 10*time.Millisecond)

	allowed, _ := bucket.Allow()
	assert.True(t, allowed)
	allowed, _ = bucket.Allow()
	assert.False(t, allowed)

	time.Sleep(20 * time.Millisecond)
	allowed, _ = bucket.Allow()
	assert.True(t, allowed)
}

func TestRateLimiterKeysByUserAndAction(t *testing.T) {
	rl := NewRateLimiter()

	// Drain u1's initiation bucket.
	for i := 0; i < 5; i++ {
		allowed, _ := rl.Allow("u1", "initiate_chat")
		assert.True(t, allowed)
	}
	allowed, _ := rl.Allow("u1", "initiate_chat")
	assert.False(t, allowed)

	// Other users and other actions are unaffected.
	allowed, _ = rl.Allow("u2", "initiate_chat")
	assert.True(t, allowed)
	allowed, _ = rl.Allow("u1", "send_message")
	assert.True(t, allowed)
}
