package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/tg-export/internal/telegram"
)

type memoryStore struct {
	mu      sync.Mutex
	reports map[uuid.UUID]*ScrapeReport
}

func newMemoryStore() *memoryStore {
	return &memoryStore{reports: make(map[uuid.UUID]*ScrapeReport)}
}

func (s *memoryStore) SaveReport(_ context.Context, runID uuid.UUID, report *ScrapeReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[runID] = report
	return nil
}

func (s *memoryStore) GetReport(_ context.Context, runID uuid.UUID) (*ScrapeReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reports[runID], nil
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []RunCompletedEvent
}

func (p *recordingPublisher) PublishRunCompleted(_ context.Context, event RunCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []RunCompletedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]RunCompletedEvent(nil), p.events...)
}

type recordingObserver struct {
	mu       sync.Mutex
	progress []float64
	lines    []string
	finished []Run
}

func (o *recordingObserver) RunProgress(_ uuid.UUID, f float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress = append(o.progress, f)
}

func (o *recordingObserver) RunLog(_ uuid.UUID, line string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lines = append(o.lines, line)
}

func (o *recordingObserver) RunFinished(run Run) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, run)
}

func (o *recordingObserver) finishedRuns() []Run {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Run(nil), o.finished...)
}

func sourceOf(client TelegramClient) ClientSource {
	return func(context.Context) (TelegramClient, error) { return client, nil }
}

// blockingClient holds GetMessages until ctx is canceled
type blockingClient struct {
	*fakeClient
}

func (b blockingClient) GetMessages(ctx context.Context, _ *telegram.Channel, _ int, _ int) ([]telegram.Message, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func waitFinished(t *testing.T, m *RunManager, id uuid.UUID) *Run {
	t.Helper()
	var run *Run
	require.Eventually(t, func() bool {
		r, ok := m.Get(id)
		if !ok || r.Status == RunRunning {
			return false
		}
		run = r
		return true
	}, 2*time.Second, 5*time.Millisecond)
	return run
}

func TestRunManager_CompletesRun(t *testing.T) {
	client := newFakeClient()
	client.addChannel("durov", 1, textMessages(5, 5, newest, "x"))

	store := newMemoryStore()
	pub := &recordingPublisher{}
	obs := &recordingObserver{}
	m := NewRunManager(newTestService(nil), sourceOf(client),
		WithReportStore(store), WithEventPublisher(pub), WithObserver(obs))

	started, err := m.Start(context.Background(), []string{"@durov"}, []string{"bad!"}, ScrapeOptions{Mode: ByCount, MessageLimit: 10})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, started.ID)
	assert.Equal(t, RunRunning, started.Status)
	assert.Equal(t, []string{"bad!"}, started.Rejected)

	run := waitFinished(t, m, started.ID)
	assert.Equal(t, RunCompleted, run.Status)
	assert.Equal(t, 1.0, run.Progress)
	require.NotNil(t, run.Report)
	assert.Equal(t, 5, run.Report.TotalMessages)
	assert.NotNil(t, run.FinishedAt)
	assert.Nil(t, m.Current())

	require.Eventually(t, func() bool { return len(obs.finishedRuns()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, store.count())

	events := pub.published()
	require.Len(t, events, 1)
	assert.Equal(t, started.ID, events[0].RunID)
	assert.Equal(t, 5, events[0].TotalMessages)

	report, err := m.Report(context.Background(), started.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalChannels)
}

func TestRunManager_RejectsConcurrentRun(t *testing.T) {
	client := blockingClient{newFakeClient()}
	client.addChannel("slow_chan", 1, nil)

	m := NewRunManager(newTestService(nil), sourceOf(client))

	first, err := m.Start(context.Background(), []string{"slow_chan"}, nil, ScrapeOptions{Mode: ByCount, MessageLimit: 10})
	require.NoError(t, err)

	_, err = m.Start(context.Background(), []string{"slow_chan"}, nil, ScrapeOptions{Mode: ByCount, MessageLimit: 10})
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	current := m.Current()
	require.NotNil(t, current)
	assert.Equal(t, first.ID, current.ID)

	m.Stop()
	run := waitFinished(t, m, first.ID)
	assert.Equal(t, RunCanceled, run.Status)

	// a new run can start once the previous one is gone
	second, err := m.Start(context.Background(), []string{"slow_chan"}, nil, ScrapeOptions{Mode: ByCount, MessageLimit: 10})
	require.NoError(t, err)
	m.Stop()
	waitFinished(t, m, second.ID)
}

func TestRunManager_ConnectFailure(t *testing.T) {
	m := NewRunManager(newTestService(nil), func(context.Context) (TelegramClient, error) {
		return nil, telegram.ErrNotAuthorized
	})

	started, err := m.Start(context.Background(), []string{"durov"}, nil, ScrapeOptions{Mode: ByCount, MessageLimit: 10})
	require.NoError(t, err)

	run := waitFinished(t, m, started.ID)
	assert.Equal(t, RunFailed, run.Status)
	assert.Contains(t, run.Error, "not authorized")

	_, err = m.Report(context.Background(), started.ID)
	assert.Error(t, err)
}

func TestRunManager_ReportFallsBackToStore(t *testing.T) {
	store := newMemoryStore()
	id := uuid.New()
	require.NoError(t, store.SaveReport(context.Background(), id, newReport(nil, newest)))

	m := NewRunManager(newTestService(nil), sourceOf(newFakeClient()), WithReportStore(store))

	report, err := m.Report(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, newest, report.ScrapedAt)

	_, err = m.Report(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestRunManager_StopWhenIdle(t *testing.T) {
	m := NewRunManager(newTestService(nil), sourceOf(newFakeClient()))
	assert.NotPanics(t, m.Stop)
	assert.Nil(t, m.Current())
}

type historyStore struct {
	*memoryStore
	runs []ArchivedRun
}

func (s historyStore) ListRuns(_ context.Context, limit int) ([]ArchivedRun, error) {
	if limit < len(s.runs) {
		return s.runs[:limit], nil
	}
	return s.runs, nil
}

func TestRunManager_History(t *testing.T) {
	t.Run("in memory without archive", func(t *testing.T) {
		client := newFakeClient()
		client.addChannel("durov", 1, textMessages(2, 2, newest, "x"))
		m := NewRunManager(newTestService(nil), sourceOf(client))

		var ids []uuid.UUID
		for i := 0; i < 3; i++ {
			started, err := m.Start(context.Background(), []string{"durov"}, nil, ScrapeOptions{Mode: ByCount, MessageLimit: 10})
			require.NoError(t, err)
			waitFinished(t, m, started.ID)
			ids = append(ids, started.ID)
		}

		runs, err := m.History(context.Background(), 2)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, ids[2], runs[0].ID)
		assert.Equal(t, ids[1], runs[1].ID)
		assert.Equal(t, 2, runs[0].TotalMessages)
	})

	t.Run("delegates to archive", func(t *testing.T) {
		archived := []ArchivedRun{{ID: uuid.New(), ScrapedAt: newest, TotalChannels: 1, TotalMessages: 7}}
		store := historyStore{memoryStore: newMemoryStore(), runs: archived}
		m := NewRunManager(newTestService(nil), sourceOf(newFakeClient()), WithReportStore(store))

		runs, err := m.History(context.Background(), 10)
		require.NoError(t, err)
		assert.Equal(t, archived, runs)
	})
}
