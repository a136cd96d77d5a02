package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blockedby/tg-export/internal/telegram"
)

type pageCall struct {
	offsetID int
	limit    int
}

// fakeClient serves channel histories from memory, newest first
type fakeClient struct {
	mu sync.Mutex

	channels   map[string]*telegram.Channel
	resolveErr map[string]error
	history    map[int64][]telegram.Message

	// pageErrs are returned by successive GetMessages calls before history is served
	pageErrs []error

	calls  []pageCall
	closed int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		channels:   make(map[string]*telegram.Channel),
		resolveErr: make(map[string]error),
		history:    make(map[int64][]telegram.Message),
	}
}

func (f *fakeClient) addChannel(handle string, id int64, msgs []telegram.Message) {
	f.channels[handle] = &telegram.Channel{ID: id, AccessHash: id * 10, Username: handle, Title: "Title " + handle}
	f.history[id] = msgs
}

func (f *fakeClient) ResolveChannel(_ context.Context, username string) (*telegram.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.resolveErr[username]; ok {
		return nil, err
	}
	ch, ok := f.channels[username]
	if !ok {
		return nil, fmt.Errorf("%w: %s", telegram.ErrChannelNotFound, username)
	}
	return ch, nil
}

func (f *fakeClient) GetMessages(_ context.Context, channel *telegram.Channel, offsetID int, limit int) ([]telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, pageCall{offsetID: offsetID, limit: limit})

	if len(f.pageErrs) > 0 {
		err := f.pageErrs[0]
		f.pageErrs = f.pageErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	var page []telegram.Message
	for _, m := range f.history[channel.ID] {
		if offsetID != 0 && m.ID >= offsetID {
			continue
		}
		page = append(page, m)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (f *fakeClient) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// textMessages builds n messages with descending ids starting at top,
// one hour apart going back from newest.
func textMessages(top, n int, newest time.Time, text string) []telegram.Message {
	msgs := make([]telegram.Message, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, telegram.Message{
			ID:   top - i,
			Text: text,
			Date: newest.Add(-time.Duration(i) * time.Hour),
		})
	}
	return msgs
}

// noSleep makes flood-wait retries instant and records the waits
type noSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *noSleep) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}
