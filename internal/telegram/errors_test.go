package telegram

import (
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
)

func TestIsFloodWait(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantWait time.Duration
		wantOK   bool
	}{
		{
			name:     "typed flood wait",
			err:      &FloodWaitError{Wait: 7 * time.Second, Err: errors.New("rpc")},
			wantWait: 7 * time.Second,
			wantOK:   true,
		},
		{
			name:     "wrapped typed flood wait",
			err:      fmt.Errorf("page: %w", &FloodWaitError{Wait: time.Second}),
			wantWait: time.Second,
			wantOK:   true,
		},
		{
			name:     "raw rpc flood wait",
			err:      tgerr.New(420, "FLOOD_WAIT_30"),
			wantWait: 30 * time.Second,
			wantOK:   true,
		},
		{
			name:   "other rpc error",
			err:    tgerr.New(400, "USERNAME_INVALID"),
			wantOK: false,
		},
		{
			name:   "nil",
			err:    nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wait, ok := IsFloodWait(tt.err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantWait, wait)
		})
	}
}

func TestIsUnavailable(t *testing.T) {
	assert.True(t, IsUnavailable(fmt.Errorf("x: %w", ErrChannelNotFound)))
	assert.True(t, IsUnavailable(ErrNotAChannel))
	assert.True(t, IsUnavailable(tgerr.New(400, "USERNAME_NOT_OCCUPIED")))
	assert.True(t, IsUnavailable(tgerr.New(400, "CHANNEL_PRIVATE")))
	assert.False(t, IsUnavailable(errors.New("timeout")))
}

func TestIsTransport(t *testing.T) {
	assert.True(t, IsTransport(fmt.Errorf("connect: %w", ErrNotAuthorized)))
	assert.True(t, IsTransport(tgerr.New(401, "AUTH_KEY_UNREGISTERED")))
	assert.True(t, IsTransport(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.False(t, IsTransport(tgerr.New(400, "USERNAME_INVALID")))
	assert.False(t, IsTransport(errors.New("boom")))
	assert.False(t, IsTransport(nil))
}
