package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRPC answers resolve/history calls from canned values
type fakeRPC struct {
	resolved    *tg.ContactsResolvedPeer
	resolveErr  error
	history     tg.MessagesMessagesClass
	historyErr  error
	lastHistory *tg.MessagesGetHistoryRequest
}

func (f *fakeRPC) ContactsResolveUsername(_ context.Context, _ *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error) {
	return f.resolved, f.resolveErr
}

func (f *fakeRPC) MessagesGetHistory(_ context.Context, req *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error) {
	f.lastHistory = req
	return f.history, f.historyErr
}

func newTestClient(api rpc) *Client {
	return newClient(api, nil, NewRateLimiter(1000, 10))
}

func TestClient_ResolveChannel(t *testing.T) {
	ch := &tg.Channel{ID: 42, AccessHash: 7, Title: "Go Jobs"}
	ch.SetUsername("golang_jobs")

	api := &fakeRPC{resolved: &tg.ContactsResolvedPeer{
		Peer:  &tg.PeerChannel{ChannelID: 42},
		Chats: []tg.ChatClass{ch},
	}}

	got, err := newTestClient(api).ResolveChannel(context.Background(), "@golang_jobs")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, int64(7), got.AccessHash)
	assert.Equal(t, "golang_jobs", got.Username)
	assert.Equal(t, "Go Jobs", got.Title)
}

func TestClient_ResolveChannel_UserIsNotAChannel(t *testing.T) {
	api := &fakeRPC{resolved: &tg.ContactsResolvedPeer{
		Peer: &tg.PeerUser{UserID: 1},
	}}

	_, err := newTestClient(api).ResolveChannel(context.Background(), "someone")
	assert.ErrorIs(t, err, ErrNotAChannel)
	assert.True(t, IsUnavailable(err))
}

func TestClient_ResolveChannel_Private(t *testing.T) {
	api := &fakeRPC{resolved: &tg.ContactsResolvedPeer{
		Peer:  &tg.PeerChannel{ChannelID: 5},
		Chats: []tg.ChatClass{&tg.ChannelForbidden{ID: 5, Title: "secret"}},
	}}

	_, err := newTestClient(api).ResolveChannel(context.Background(), "secret")
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestClient_ResolveChannel_FloodWait(t *testing.T) {
	api := &fakeRPC{resolveErr: tgerr.New(420, "FLOOD_WAIT_3")}
	client := newTestClient(api)

	_, err := client.ResolveChannel(context.Background(), "busy")

	var fw *FloodWaitError
	require.True(t, errors.As(err, &fw))
	assert.Equal(t, 3*time.Second, fw.Wait)
	assert.Greater(t, client.rateLimiter.FloodWaitRemaining(), time.Duration(0))
}

func TestClient_GetMessages(t *testing.T) {
	text := &tg.Message{ID: 11, Message: "hello world", Date: 1705320000}
	text.SetViews(120)
	text.SetForwards(3)
	reply := &tg.MessageReplyHeader{}
	reply.SetReplyToMsgID(9)
	text.SetReplyTo(reply)
	text.SetReactions(tg.MessageReactions{Results: []tg.ReactionCount{
		{Reaction: &tg.ReactionEmoji{Emoticon: "👍"}, Count: 5},
	}})

	photo := &tg.Message{ID: 10, Date: 1705310000}
	media := &tg.MessageMediaPhoto{}
	media.SetPhoto(&tg.Photo{ID: 1})
	photo.SetMedia(media)

	api := &fakeRPC{history: &tg.MessagesChannelMessages{Messages: []tg.MessageClass{
		text,
		photo,
		&tg.MessageService{ID: 9, Date: 1705300000, Action: &tg.MessageActionPinMessage{}},
		&tg.MessageEmpty{ID: 8},
	}}}

	channel := &Channel{ID: 42, AccessHash: 7}
	msgs, err := newTestClient(api).GetMessages(context.Background(), channel, 12, 500)
	require.NoError(t, err)

	// page size is clamped to the api maximum
	require.NotNil(t, api.lastHistory)
	assert.Equal(t, 100, api.lastHistory.Limit)
	assert.Equal(t, 12, api.lastHistory.OffsetID)

	require.Len(t, msgs, 3, "empty placeholders are dropped")

	first := msgs[0]
	assert.Equal(t, 11, first.ID)
	assert.Equal(t, int64(42), first.ChannelID)
	assert.Equal(t, "hello world", first.Text)
	assert.Equal(t, time.Unix(1705320000, 0).UTC(), first.Date)
	require.NotNil(t, first.Views)
	assert.Equal(t, 120, *first.Views)
	require.NotNil(t, first.Forwards)
	assert.Equal(t, 3, *first.Forwards)
	require.NotNil(t, first.ReplyToMsgID)
	assert.Equal(t, 9, *first.ReplyToMsgID)
	assert.Len(t, first.Reactions, 1)

	second := msgs[1]
	assert.True(t, second.Attachments.Photo)
	assert.Nil(t, second.Views, "views absent on the wire stay nil")
	assert.Nil(t, second.Forwards)
	assert.Nil(t, second.ReplyToMsgID)

	assert.True(t, msgs[2].Service)
	assert.Empty(t, msgs[2].Text)
}

func TestClient_GetMessages_Slice(t *testing.T) {
	api := &fakeRPC{history: &tg.MessagesMessagesSlice{Messages: []tg.MessageClass{
		&tg.Message{ID: 1, Message: "only"},
	}}}

	msgs, err := newTestClient(api).GetMessages(context.Background(), &Channel{ID: 1}, 0, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Date.IsZero())
}

func TestClient_GetMessages_FloodWait(t *testing.T) {
	api := &fakeRPC{historyErr: tgerr.New(420, "FLOOD_WAIT_15")}

	_, err := newTestClient(api).GetMessages(context.Background(), &Channel{ID: 1}, 0, 10)

	wait, ok := IsFloodWait(err)
	require.True(t, ok)
	assert.Equal(t, 15*time.Second, wait)
}

func TestClient_GetMessages_OtherError(t *testing.T) {
	api := &fakeRPC{historyErr: errors.New("boom")}

	_, err := newTestClient(api).GetMessages(context.Background(), &Channel{ID: 1}, 0, 10)
	require.Error(t, err)
	_, ok := IsFloodWait(err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "get history")
}

func TestClient_Close_Idempotent(t *testing.T) {
	stops := 0
	client := newClient(&fakeRPC{}, func() { stops++ }, nil)

	client.Close()
	client.Close()

	assert.Equal(t, 1, stops)
}
