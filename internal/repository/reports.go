package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"github.com/blockedby/tg-export/internal/collector"
)

var messageColumns = []string{
	"run_id", "position", "seq", "message_id", "date", "text",
	"views", "forwards", "media_type", "reactions", "reply_to_msg_id", "url",
}

// exportRun maps export_runs for listing queries
type exportRun struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	ScrapedAt     time.Time
	TotalChannels int
	TotalMessages int
	CreatedAt     time.Time
}

func (exportRun) TableName() string { return "export_runs" }

// ReportsRepository archives scrape reports in postgres
type ReportsRepository struct {
	pool *pgxpool.Pool
	gorm *gorm.DB
}

// NewReportsRepository creates a new reports repository
func NewReportsRepository(pool *pgxpool.Pool, gormDB *gorm.DB) *ReportsRepository {
	return &ReportsRepository{pool: pool, gorm: gormDB}
}

// SaveReport stores the report, its channels and messages in one transaction.
// Saving the same run twice replaces the earlier copy.
func (r *ReportsRepository) SaveReport(ctx context.Context, runID uuid.UUID, report *collector.ScrapeReport) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// cascades to channel_results and messages
	if _, err := tx.Exec(ctx, `DELETE FROM export_runs WHERE id = $1`, runID); err != nil {
		return fmt.Errorf("replace run: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO export_runs (id, scraped_at, total_channels, total_messages)
		VALUES ($1, $2, $3, $4)
	`, runID, report.ScrapedAt, report.TotalChannels, report.TotalMessages)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	var rows [][]any
	for pos, ch := range report.Channels {
		var stop *string
		if ch.StopReason != nil {
			s := string(*ch.StopReason)
			stop = &s
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO channel_results (run_id, position, channel, channel_id, channel_title,
			                             total_messages, total_words, stop_reason, source_exhausted,
			                             incomplete, error)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, runID, pos, ch.Channel, ch.ChannelID, ch.ChannelTitle,
			ch.TotalMessages, ch.TotalWords, stop, ch.SourceExhausted,
			ch.Incomplete, ch.Error)
		if err != nil {
			return fmt.Errorf("insert channel %s: %w", ch.Channel, err)
		}

		for seq, msg := range ch.Messages {
			row, err := messageRow(runID, pos, seq, msg)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
	}

	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"messages"}, messageColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy messages: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit report: %w", err)
	}
	return nil
}

func messageRow(runID uuid.UUID, pos, seq int, msg collector.MessageRecord) ([]any, error) {
	reactions := msg.Reactions
	if reactions == nil {
		reactions = []collector.Reaction{}
	}
	rawReactions, err := json.Marshal(reactions)
	if err != nil {
		return nil, fmt.Errorf("marshal reactions of message %d: %w", msg.ID, err)
	}
	return []any{
		runID, pos, seq, msg.ID, msg.Timestamp, msg.Text,
		msg.Views, msg.Forwards, string(msg.MediaType), rawReactions, msg.ReplyToID, msg.Permalink,
	}, nil
}

// GetReport loads an archived report, nil when the run is unknown
func (r *ReportsRepository) GetReport(ctx context.Context, runID uuid.UUID) (*collector.ScrapeReport, error) {
	report := &collector.ScrapeReport{Channels: []collector.ChannelResult{}}
	err := r.pool.QueryRow(ctx, `
		SELECT scraped_at, total_channels, total_messages
		FROM export_runs
		WHERE id = $1
	`, runID).Scan(&report.ScrapedAt, &report.TotalChannels, &report.TotalMessages)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	report.ScrapedAt = report.ScrapedAt.UTC()

	channelRows, err := r.pool.Query(ctx, `
		SELECT channel, channel_id, channel_title, total_messages, total_words, stop_reason, source_exhausted,
		       incomplete, error
		FROM channel_results
		WHERE run_id = $1
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get channels: %w", err)
	}
	defer channelRows.Close()

	for channelRows.Next() {
		var ch collector.ChannelResult
		var stop *string
		if err := channelRows.Scan(&ch.Channel, &ch.ChannelID, &ch.ChannelTitle,
			&ch.TotalMessages, &ch.TotalWords, &stop, &ch.SourceExhausted,
			&ch.Incomplete, &ch.Error); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		if stop != nil {
			reason := collector.StopReason(*stop)
			ch.StopReason = &reason
		}
		ch.Messages = []collector.MessageRecord{}
		report.Channels = append(report.Channels, ch)
	}
	if err := channelRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}

	msgRows, err := r.pool.Query(ctx, `
		SELECT position, message_id, date, text, views, forwards, media_type, reactions, reply_to_msg_id, url
		FROM messages
		WHERE run_id = $1
		ORDER BY position, seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var (
			pos          int
			msg          collector.MessageRecord
			mediaType    string
			rawReactions []byte
		)
		if err := msgRows.Scan(&pos, &msg.ID, &msg.Timestamp, &msg.Text, &msg.Views, &msg.Forwards,
			&mediaType, &rawReactions, &msg.ReplyToID, &msg.Permalink); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if pos < 0 || pos >= len(report.Channels) {
			return nil, fmt.Errorf("message %d references unknown channel position %d", msg.ID, pos)
		}
		msg.MediaType = collector.MediaType(mediaType)
		if err := json.Unmarshal(rawReactions, &msg.Reactions); err != nil {
			return nil, fmt.Errorf("decode reactions of message %d: %w", msg.ID, err)
		}
		if msg.Timestamp != nil {
			ts := msg.Timestamp.UTC()
			msg.Timestamp = &ts
		}
		report.Channels[pos].Messages = append(report.Channels[pos].Messages, msg)
	}
	if err := msgRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return report, nil
}

// ListRuns returns the most recent archived runs
func (r *ReportsRepository) ListRuns(ctx context.Context, limit int) ([]collector.ArchivedRun, error) {
	var rows []exportRun
	q := r.gorm.WithContext(ctx).Order("scraped_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs := make([]collector.ArchivedRun, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, collector.ArchivedRun{
			ID:            row.ID,
			ScrapedAt:     row.ScrapedAt.UTC(),
			TotalChannels: row.TotalChannels,
			TotalMessages: row.TotalMessages,
		})
	}
	return runs, nil
}
