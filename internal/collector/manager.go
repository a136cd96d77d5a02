package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blockedby/tg-export/internal/logger"
)

// errors
var (
	ErrAlreadyRunning = errors.New("a scrape run is already in progress")
	ErrRunNotFound    = errors.New("run not found")
)

// finished runs kept in memory for status and export
const keepFinishedRuns = 20

// RunStatus is the lifecycle state of a run.
type RunStatus string

// run statuses
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// Run is a snapshot of one scrape run.
type Run struct {
	ID         uuid.UUID     `json:"run_id"`
	Status     RunStatus     `json:"status"`
	Channels   []string      `json:"channels"`
	Rejected   []string      `json:"rejected,omitempty"`
	Options    ScrapeOptions `json:"-"`
	Progress   float64       `json:"progress"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Error      string        `json:"error,omitempty"`
	Report     *ScrapeReport `json:"-"`
}

// ClientSource opens the telegram connection for one run.
type ClientSource func(ctx context.Context) (TelegramClient, error)

// ReportStore archives finished reports.
type ReportStore interface {
	SaveReport(ctx context.Context, runID uuid.UUID, report *ScrapeReport) error
	GetReport(ctx context.Context, runID uuid.UUID) (*ScrapeReport, error)
}

// ArchivedRun summarizes a run kept in the archive.
type ArchivedRun struct {
	ID            uuid.UUID `json:"run_id"`
	ScrapedAt     time.Time `json:"scraped_at"`
	TotalChannels int       `json:"total_channels"`
	TotalMessages int       `json:"total_messages"`
}

// RunHistory is implemented by stores that can list archived runs.
type RunHistory interface {
	ListRuns(ctx context.Context, limit int) ([]ArchivedRun, error)
}

// EventPublisher announces finished runs
type EventPublisher interface {
	PublishRunCompleted(ctx context.Context, event RunCompletedEvent) error
}

// RunCompletedEvent represents a finished export for NATS
type RunCompletedEvent struct {
	RunID         uuid.UUID `json:"run_id"`
	Channels      []string  `json:"channels"`
	TotalChannels int       `json:"total_channels"`
	TotalMessages int       `json:"total_messages"`
	ScrapedAt     time.Time `json:"scraped_at"`
}

// RunObserver receives live progress and log lines of the active run.
type RunObserver interface {
	RunProgress(runID uuid.UUID, fraction float64)
	RunLog(runID uuid.UUID, line string)
	RunFinished(run Run)
}

// RunManager manages scrape runs
// ensures only one run is active at a time
// thread-safe
type RunManager struct {
	mu       sync.Mutex
	current  *Run
	cancelFn context.CancelFunc
	finished map[uuid.UUID]*Run
	order    []uuid.UUID

	service  *Service
	connect  ClientSource
	store    ReportStore
	events   EventPublisher
	observer RunObserver
	log      *logger.Logger
}

// RunManagerOption configures optional collaborators.
type RunManagerOption func(*RunManager)

// WithReportStore archives every completed report.
func WithReportStore(store ReportStore) RunManagerOption {
	return func(m *RunManager) { m.store = store }
}

// WithEventPublisher publishes a completion event per run.
func WithEventPublisher(p EventPublisher) RunManagerOption {
	return func(m *RunManager) { m.events = p }
}

// WithObserver streams progress and log lines.
func WithObserver(o RunObserver) RunManagerOption {
	return func(m *RunManager) { m.observer = o }
}

// NewRunManager creates a new run manager
func NewRunManager(service *Service, connect ClientSource, opts ...RunManagerOption) *RunManager {
	m := &RunManager{
		service:  service,
		connect:  connect,
		finished: make(map[uuid.UUID]*Run),
		log:      logger.Get(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start starts a new run over refs
// returns ErrAlreadyRunning if a run is active
func (m *RunManager) Start(_ context.Context, refs, rejected []string, opts ScrapeOptions) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return nil, ErrAlreadyRunning
	}

	// the run outlives the request that started it
	runCtx, cancel := context.WithCancel(context.Background())
	m.cancelFn = cancel

	run := &Run{
		ID:        uuid.New(),
		Status:    RunRunning,
		Channels:  append([]string(nil), refs...),
		Rejected:  append([]string(nil), rejected...),
		Options:   opts,
		StartedAt: time.Now().UTC(),
	}
	m.current = run

	go m.execute(runCtx, run)

	snapshot := *run
	return &snapshot, nil
}

// Stop cancels the active run
// safe to call when no run is active
func (m *RunManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelFn != nil {
		m.cancelFn()
		m.cancelFn = nil
	}
}

// Current returns a snapshot of the active run, nil when idle
func (m *RunManager) Current() *Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	snapshot := *m.current
	return &snapshot
}

// Get returns a snapshot of the active or a recently finished run
func (m *RunManager) Get(id uuid.UUID) (*Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.ID == id {
		snapshot := *m.current
		return &snapshot, true
	}
	if run, ok := m.finished[id]; ok {
		snapshot := *run
		return &snapshot, true
	}
	return nil, false
}

// Report returns the report of a finished run, from memory or the archive
func (m *RunManager) Report(ctx context.Context, id uuid.UUID) (*ScrapeReport, error) {
	if run, ok := m.Get(id); ok {
		if run.Report == nil {
			return nil, fmt.Errorf("run %s has no report (status %s)", id, run.Status)
		}
		return run.Report, nil
	}
	if m.store == nil {
		return nil, ErrRunNotFound
	}
	report, err := m.store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, ErrRunNotFound
	}
	return report, nil
}

// History lists archived runs newest first, falling back to the runs
// still held in memory when no archive is configured
func (m *RunManager) History(ctx context.Context, limit int) ([]ArchivedRun, error) {
	if history, ok := m.store.(RunHistory); ok {
		return history.ListRuns(ctx, limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	runs := []ArchivedRun{}
	for i := len(m.order) - 1; i >= 0 && (limit <= 0 || len(runs) < limit); i-- {
		run := m.finished[m.order[i]]
		if run.Report == nil {
			continue
		}
		runs = append(runs, ArchivedRun{
			ID:            run.ID,
			ScrapedAt:     run.Report.ScrapedAt,
			TotalChannels: run.Report.TotalChannels,
			TotalMessages: run.Report.TotalMessages,
		})
	}
	return runs, nil
}

// execute runs the scrape
// this is called in a goroutine
func (m *RunManager) execute(ctx context.Context, run *Run) {
	progress := func(f float64) {
		m.mu.Lock()
		run.Progress = f
		m.mu.Unlock()
		if m.observer != nil {
			m.observer.RunProgress(run.ID, f)
		}
	}
	logf := func(line string) {
		if m.observer != nil {
			m.observer.RunLog(run.ID, line)
		}
	}

	report, err := m.scrape(ctx, run, progress, logf)

	m.mu.Lock()
	now := time.Now().UTC()
	run.FinishedAt = &now
	switch {
	case err == nil:
		run.Status = RunCompleted
		run.Report = report
	case errors.Is(err, context.Canceled):
		run.Status = RunCanceled
		run.Error = err.Error()
	default:
		run.Status = RunFailed
		run.Error = err.Error()
	}
	m.remember(run)
	if m.current != nil && m.current.ID == run.ID {
		m.current = nil
		m.cancelFn = nil
	}
	final := *run
	m.mu.Unlock()

	if err != nil {
		m.log.Error().Err(err).Str("run_id", run.ID.String()).Msg("run failed")
	} else {
		m.afterRun(run.ID, run.Channels, report)
	}

	if m.observer != nil {
		m.observer.RunFinished(final)
	}
}

func (m *RunManager) scrape(ctx context.Context, run *Run, progress func(float64), logf func(string)) (*ScrapeReport, error) {
	client, err := m.connect(ctx)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return m.service.Run(ctx, client, run.Channels, run.Options, progress, logf)
}

// afterRun archives and announces a completed run; failures are only logged
func (m *RunManager) afterRun(id uuid.UUID, channels []string, report *ScrapeReport) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if m.store != nil {
		if err := m.store.SaveReport(ctx, id, report); err != nil {
			m.log.Error().Err(err).Str("run_id", id.String()).Msg("failed to archive report")
		}
	}

	if m.events != nil {
		event := RunCompletedEvent{
			RunID:         id,
			Channels:      channels,
			TotalChannels: report.TotalChannels,
			TotalMessages: report.TotalMessages,
			ScrapedAt:     report.ScrapedAt,
		}
		if err := m.events.PublishRunCompleted(ctx, event); err != nil {
			m.log.Warn().Err(err).Str("run_id", id.String()).Msg("failed to publish run completed event")
		}
	}
}

// remember keeps the most recent finished runs; caller holds mu
func (m *RunManager) remember(run *Run) {
	m.finished[run.ID] = run
	m.order = append(m.order, run.ID)
	for len(m.order) > keepFinishedRuns {
		delete(m.finished, m.order[0])
		m.order = m.order[1:]
	}
}
