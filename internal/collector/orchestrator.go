package collector

import (
	"context"
	"errors"
	"fmt"
)

// Run scrapes refs one after another over a single client and assembles the report.
// progress receives index/total before each channel and 1.0 at the end.
// A channel that fails is logged and left out; a transport failure or a
// canceled ctx ends the run with that error. client is closed before Run returns.
func (s *Service) Run(ctx context.Context, client TelegramClient, refs []string, opts ScrapeOptions, progress func(float64), logf func(string)) (*ScrapeReport, error) {
	defer client.Close()

	logf = orDiscard(logf)
	if progress == nil {
		progress = func(float64) {}
	}

	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	total := len(refs)
	channels := make([]ChannelResult, 0, total)

	for idx, ref := range refs {
		progress(float64(idx) / float64(total))
		logf(fmt.Sprintf("🔄 Scraping %d/%d: %s", idx+1, total, ref))

		result, err := s.ScrapeChannel(ctx, client, ref, opts, logf)
		if err != nil {
			if IsFatal(err) {
				s.log.Error().Err(err).Str("channel", ref).Msg("run aborted")
				logf(fmt.Sprintf("❌ Error: %v", err))
				return nil, err
			}

			var rl *RateLimited
			if errors.As(err, &rl) {
				logf(fmt.Sprintf("⏳ FloodWaitError: Need to wait %d seconds for channel %s", int(rl.Wait.Seconds()), ref))
			} else {
				logf(fmt.Sprintf("❌ Error scraping %s: %v", ref, err))
			}
			s.log.Warn().Err(err).Str("channel", ref).Msg("channel skipped")
			continue
		}

		channels = append(channels, *result)
		if result.Incomplete {
			logf(fmt.Sprintf("⚠️ Scraped %d messages from %s before an error, result is incomplete", result.TotalMessages, ref))
			continue
		}
		logf(fmt.Sprintf("✅ Scraped %d messages from %s", result.TotalMessages, ref))
	}

	progress(1.0)
	report := newReport(channels, s.now().UTC())
	logf(fmt.Sprintf("✅ Completed! Scraped %d channel(s)", report.TotalChannels))

	s.log.Info().
		Int("channels", report.TotalChannels).
		Int("messages", report.TotalMessages).
		Msg("run completed")

	return report, nil
}
