package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blockedby/tg-export/internal/logger"
	"github.com/blockedby/tg-export/internal/telegram"
)

// pageSize is the most messages requested per history call.
const pageSize = 100

// TelegramClient defines interface for telegram operations
type TelegramClient interface {
	ResolveChannel(ctx context.Context, username string) (*telegram.Channel, error)
	GetMessages(ctx context.Context, channel *telegram.Channel, offsetID int, limit int) ([]telegram.Message, error)
	Close()
}

// Service runs channel scrapes over an authenticated client.
type Service struct {
	log   *logger.Logger
	retry RetryPolicy
	now   func() time.Time
}

// NewService creates a new collector service
func NewService(log *logger.Logger, retry RetryPolicy) *Service {
	if log == nil {
		log = logger.Get()
	}
	return &Service{
		log:   log,
		retry: retry,
		now:   time.Now,
	}
}

// ScrapeChannel collects the history of one channel, newest first, until the
// mode's stop condition, the message limit or the start of the channel.
//
// Errors: *ChannelResolutionError when the reference does not resolve,
// *RateLimited when resolution itself is flood-limited, *TransportError for
// connection or auth failures. Failures while paging after the channel was
// resolved end the scrape with the records gathered so far.
func (s *Service) ScrapeChannel(ctx context.Context, client TelegramClient, ref string, opts ScrapeOptions, logf func(string)) (*ChannelResult, error) {
	logf = orDiscard(logf)

	handle := NormalizeLink(ref)
	if handle == "" {
		return nil, &ChannelResolutionError{Channel: ref, Err: errors.New("empty channel reference")}
	}

	channel, err := client.ResolveChannel(ctx, handle)
	if err != nil {
		err = classify(handle, err)
		var (
			rl *RateLimited
			ce *ChannelResolutionError
		)
		if errors.As(err, &rl) || errors.As(err, &ce) || IsFatal(err) {
			return nil, err
		}
		return nil, &ChannelResolutionError{Channel: handle, Err: err}
	}

	linkHandle := channel.Username
	if linkHandle == "" {
		linkHandle = handle
	}

	result := &ChannelResult{
		Channel:   handle,
		ChannelID: channel.ID,
		Messages:  []MessageRecord{},
	}
	if channel.Title != "" {
		title := channel.Title
		result.ChannelTitle = &title
	}

	s.log.Info().
		Str("channel", handle).
		Int64("channel_id", channel.ID).
		Str("mode", string(opts.Mode)).
		Int("limit", opts.MessageLimit).
		Msg("starting channel scrape")

	var (
		retrieved int
		words     int
		offsetID  int
		stopped   bool
	)

paging:
	for retrieved < opts.MessageLimit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		limit := min(opts.MessageLimit-retrieved, pageSize)

		var page []telegram.Message
		err := s.retry.Do(ctx, func() error {
			msgs, err := client.GetMessages(ctx, channel, offsetID, limit)
			if err != nil {
				return classify(handle, err)
			}
			page = msgs
			return nil
		}, func(wait time.Duration, attempt int) {
			s.log.Warn().
				Str("channel", handle).
				Int("offset_id", offsetID).
				Float64("wait_seconds", wait.Seconds()).
				Int("attempt", attempt).
				Msg("flood wait, retrying page")
			logf(fmt.Sprintf("⏳ Rate limit: waiting %d seconds...", int(wait.Round(time.Second).Seconds())))
		})
		if err != nil {
			if IsFatal(err) {
				return nil, err
			}
			s.log.Error().Err(err).Str("channel", handle).Int("offset_id", offsetID).Msg("failed to get messages")
			logf(fmt.Sprintf("⚠️ Stopped paging %s: %v", handle, err))
			cause := err.Error()
			result.Incomplete = true
			result.Error = &cause
			break
		}

		if len(page) == 0 {
			result.SourceExhausted = true
			break
		}

		for _, msg := range page {
			retrieved++

			if opts.Mode == ByDate && opts.FromDate != nil && !msg.Date.IsZero() && beforeDay(msg.Date, *opts.FromDate) {
				result.StopReason = stopReason(StopDate)
				stopped = true
				break paging
			}

			rec, err := Extract(msg, linkHandle)
			if err != nil {
				s.log.Warn().Err(err).Str("channel", handle).Int("message_id", msg.ID).Msg("skipping message")
				logf(fmt.Sprintf("⚠️ Skipping message %d: %v", msg.ID, err))
				if retrieved >= opts.MessageLimit {
					break paging
				}
				continue
			}
			result.Messages = append(result.Messages, rec)

			if opts.Mode == ByWords {
				words += len(strings.Fields(msg.Text))
				if words >= opts.WordLimit {
					result.StopReason = stopReason(StopWords)
					stopped = true
					break paging
				}
			}

			if retrieved >= opts.MessageLimit {
				break paging
			}
		}

		last := page[len(page)-1].ID
		if last <= 0 || (offsetID != 0 && last >= offsetID) {
			// history did not move backwards, nothing older left
			result.SourceExhausted = true
			break
		}
		offsetID = last
	}

	if stopped {
		result.SourceExhausted = false
	}
	result.TotalMessages = len(result.Messages)
	if opts.Mode == ByWords {
		total := words
		result.TotalWords = &total
	}

	s.log.Info().
		Str("channel", handle).
		Int("messages", result.TotalMessages).
		Bool("source_exhausted", result.SourceExhausted).
		Bool("incomplete", result.Incomplete).
		Msg("channel scrape completed")

	return result, nil
}

// beforeDay reports whether t falls on a UTC calendar day earlier than day.
func beforeDay(t, day time.Time) bool {
	return truncateDay(t).Before(truncateDay(day))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func stopReason(r StopReason) *StopReason {
	return &r
}

func orDiscard(logf func(string)) func(string) {
	if logf == nil {
		return func(string) {}
	}
	return logf
}
