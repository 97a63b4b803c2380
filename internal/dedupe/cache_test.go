// ABOUTME: Tests for the TTL dedupe cache
// ABOUTME: Covers marking, expiry, size eviction and atomic check-and-mark

package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_MarkAndCheck(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Close()

	assert.False(t, c.Check("a"))
	c.Mark("a")
	assert.True(t, c.Check("a"))
	assert.False(t, c.Check("b"))
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New(20*time.Millisecond, 10)
	defer c.Close()

	c.Mark("a")
	assert.True(t, c.Check("a"))
	time.Sleep(30 * time.Millisecond)
	assert.False(t, c.Check("a"))
}

func TestCache_SizeEviction(t *testing.T) {
	c := New(time.Minute, 2)
	defer c.Close()

	c.Mark("a")
	c.Mark("b")
	c.Mark("c") // evicts "a"

	assert.False(t, c.Check("a"))
	assert.True(t, c.Check("b"))
	assert.True(t, c.Check("c"))
	assert.Equal(t, 2, c.Len())
}

func TestCache_CheckAndMark(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Close()

	assert.False(t, c.CheckAndMark("a"))
	assert.True(t, c.CheckAndMark("a"))
}

func TestCache_RemarkDoesNotDuplicate(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Close()

	c.Mark("a")
	c.Mark("a")
	assert.Equal(t, 1, c.Len())
}

func TestCache_CloseTwice(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	c.Close()
}

func TestCache_PurgeExpired(t *testing.T) {
	c := New(10*time.Millisecond, 10)
	defer c.Close()

	c.Mark("a")
	c.Mark("b")
	time.Sleep(20 * time.Millisecond)
	c.purgeExpired()
	assert.Equal(t, 0, c.Len())
}
