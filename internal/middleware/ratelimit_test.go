package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestLimiter(conns int, rate float64, burst int) (*IPRateLimiter, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewIPRateLimiter(conns, rate, burst)
	rl.now = clk.now
	return rl, clk
}

func TestConnectAllowed_PerIPCap(t *testing.T) {
	rl, _ := newTestLimiter(2, 10, 10)

	assert.True(t, rl.ConnectAllowed("1.1.1.1"))
	assert.True(t, rl.ConnectAllowed("1.1.1.1"))
	assert.False(t, rl.ConnectAllowed("1.1.1.1"))
	assert.True(t, rl.ConnectAllowed("2.2.2.2"), "other IPs are independent")
	assert.Equal(t, 2, rl.Connections("1.1.1.1"))

	rl.Disconnect("1.1.1.1")
	assert.True(t, rl.ConnectAllowed("1.1.1.1"))
}

func TestDisconnect_NeverNegative(t *testing.T) {
	rl, _ := newTestLimiter(1, 10, 10)
	rl.Disconnect("9.9.9.9")
	assert.True(t, rl.ConnectAllowed("9.9.9.9"))
	rl.Disconnect("9.9.9.9")
	rl.Disconnect("9.9.9.9")
	assert.Equal(t, 0, rl.Connections("9.9.9.9"))
}

func TestMessageAllowed_BurstThenRefill(t *testing.T) {
	rl, clk := newTestLimiter(4, 2, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.MessageAllowed("1.1.1.1"), "burst message %d", i)
	}
	assert.False(t, rl.MessageAllowed("1.1.1.1"))

	clk.t = clk.t.Add(500 * time.Millisecond) // one token at 2/s
	assert.True(t, rl.MessageAllowed("1.1.1.1"))
	assert.False(t, rl.MessageAllowed("1.1.1.1"))
}

func TestSweep_RemovesIdleVisitors(t *testing.T) {
	rl, clk := newTestLimiter(4, 10, 10)

	rl.ConnectAllowed("connected")
	rl.MessageAllowed("idle")
	clk.t = clk.t.Add(10 * time.Minute)

	assert.Equal(t, 1, rl.Sweep(5*time.Minute))
	assert.Equal(t, 1, rl.Connections("connected"))
	_, ok := rl.visitors["idle"]
	assert.False(t, ok)
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		remote string
		want   string
	}{
		{"forwarded chain", "203.0.113.7, 10.0.0.1", "10.0.0.1:443", "203.0.113.7"},
		{"forwarded single", " 203.0.113.8 ", "10.0.0.1:443", "203.0.113.8"},
		{"remote addr", "", "192.0.2.1:5555", "192.0.2.1"},
		{"remote without port", "", "192.0.2.2", "192.0.2.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, RealIP(r))
		})
	}
}
