package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blockedby/tg-export/internal/telegram"
)

// ChannelResolutionError means the reference does not name a reachable channel.
// The run skips the channel and continues.
type ChannelResolutionError struct {
	Channel string
	Err     error
}

func (e *ChannelResolutionError) Error() string {
	if e.Channel == "" {
		return fmt.Sprintf("resolve channel: %v", e.Err)
	}
	return fmt.Sprintf("resolve channel %s: %v", e.Channel, e.Err)
}

func (e *ChannelResolutionError) Unwrap() error { return e.Err }

// RateLimited carries the server-mandated wait before the next request.
type RateLimited struct {
	Wait time.Duration
	Err  error
}

func (e *RateLimited) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.Wait)
}

func (e *RateLimited) Unwrap() error { return e.Err }

// TransportError is a connection or authorization failure. It ends the run.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedMessageError marks a message that cannot be turned into a record.
type MalformedMessageError struct {
	MessageID int
	Reason    string
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed message %d: %s", e.MessageID, e.Reason)
}

// classify maps client errors onto the error kinds the scraper acts on.
// Errors it does not recognise are returned unchanged.
func classify(channel string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if wait, ok := telegram.IsFloodWait(err); ok {
		return &RateLimited{Wait: wait, Err: err}
	}
	if telegram.IsTransport(err) {
		return &TransportError{Err: err}
	}
	if telegram.IsUnavailable(err) {
		return &ChannelResolutionError{Channel: channel, Err: err}
	}
	return err
}

// IsFatal reports whether err should end the whole run rather than one channel.
func IsFatal(err error) bool {
	var te *TransportError
	return errors.As(err, &te) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
