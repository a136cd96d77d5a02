package telegram

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gotd/td/tgerr"
)

// errors
var (
	ErrNotAuthorized   = errors.New("telegram client not authorized")
	ErrChannelNotFound = errors.New("channel not found")
	ErrNotAChannel     = errors.New("not a channel")
)

// FloodWaitError is returned when telegram asks the caller to back off.
type FloodWaitError struct {
	Wait time.Duration
	Err  error
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait %s: %v", e.Wait, e.Err)
}

func (e *FloodWaitError) Unwrap() error {
	return e.Err
}

// rpc error types meaning the username does not point to a reachable channel
var unavailableTypes = []string{
	"USERNAME_NOT_OCCUPIED",
	"USERNAME_INVALID",
	"CHANNEL_PRIVATE",
	"CHANNEL_INVALID",
	"CHANNEL_PUBLIC_GROUP_NA",
}

// asFloodWait converts FLOOD_WAIT_X / FLOOD_PREMIUM_WAIT_X rpc errors into *FloodWaitError.
func asFloodWait(err error) (*FloodWaitError, bool) {
	if err == nil {
		return nil, false
	}
	d, ok := tgerr.AsFloodWait(err)
	if !ok {
		return nil, false
	}
	return &FloodWaitError{Wait: d, Err: err}, true
}

// IsFloodWait reports whether err carries a telegram backoff and returns its duration.
func IsFloodWait(err error) (time.Duration, bool) {
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw.Wait, true
	}
	if d, ok := tgerr.AsFloodWait(err); ok {
		return d, true
	}
	return 0, false
}

// IsUnavailable reports whether err means the channel does not exist or is not accessible.
func IsUnavailable(err error) bool {
	if errors.Is(err, ErrChannelNotFound) || errors.Is(err, ErrNotAChannel) {
		return true
	}
	return tgerr.Is(err, unavailableTypes...)
}

// IsTransport reports whether err is a connection or authorization failure.
// Such failures affect every channel of a run, not just the current one.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotAuthorized) {
		return true
	}
	if rpcErr, ok := tgerr.As(err); ok {
		return rpcErr.Code == 401
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
