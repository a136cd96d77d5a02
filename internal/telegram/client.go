// Package telegram provides Telegram MTProto client wrapper.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blockedby/tg-export/internal/logger"
	"github.com/celestix/gotgproto"
	"github.com/gotd/td/tg"
)

// maxPageSize is the largest page MessagesGetHistory returns.
const maxPageSize = 100

// rpc is the part of *tg.Client the exporter talks to.
type rpc interface {
	ContactsResolveUsername(ctx context.Context, request *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error)
	MessagesGetHistory(ctx context.Context, request *tg.MessagesGetHistoryRequest) (tg.MessagesMessagesClass, error)
}

// Client wraps an authenticated gotgproto client and provides the
// channel history operations used by exports. One Client serves one run.
type Client struct {
	api         rpc
	stop        func()
	stopOnce    sync.Once
	rateLimiter *RateLimiter
	log         *logger.Logger
}

// NewClient wraps an authenticated gotgproto client.
func NewClient(proto *gotgproto.Client, rateLimiter *RateLimiter) *Client {
	return newClient(proto.API(), proto.Stop, rateLimiter)
}

func newClient(api rpc, stop func(), rateLimiter *RateLimiter) *Client {
	if rateLimiter == nil {
		rateLimiter = DefaultRateLimiter()
	}
	return &Client{
		api:         api,
		stop:        stop,
		rateLimiter: rateLimiter,
		log:         logger.Get(),
	}
}

// Close disconnects the underlying client. Safe to call more than once.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		if c.stop != nil {
			c.stop()
		}
	})
}

// ResolveChannel resolves channel username to Channel info
// username can be with or without @ prefix
func (c *Client) ResolveChannel(ctx context.Context, username string) (*Channel, error) {
	username = strings.TrimPrefix(username, "@")

	c.log.Debug().Str("username", username).Msg("telegram: waiting for rate limiter")
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	c.log.Info().Str("username", username).Msg("telegram: resolving channel username")
	resolved, err := c.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: username,
	})
	if err != nil {
		if fw, ok := asFloodWait(err); ok {
			c.log.Warn().Dur("wait", fw.Wait).Msg("telegram: FLOOD_WAIT on resolve, updating rate limiter")
			c.rateLimiter.SetFloodWait(fw.Wait)
			return nil, fw
		}
		c.log.Error().Err(err).Str("username", username).Msg("telegram: failed to resolve username")
		return nil, fmt.Errorf("resolve username %s: %w", username, err)
	}

	peer, ok := resolved.Peer.(*tg.PeerChannel)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotAChannel, username)
	}

	for _, chat := range resolved.Chats {
		switch ch := chat.(type) {
		case *tg.Channel:
			if ch.ID != peer.ChannelID {
				continue
			}
			name, ok := ch.GetUsername()
			if !ok {
				name = username
			}
			return &Channel{
				ID:         ch.ID,
				AccessHash: ch.AccessHash,
				Username:   name,
				Title:      ch.Title,
			}, nil
		case *tg.ChannelForbidden:
			if ch.ID == peer.ChannelID {
				return nil, fmt.Errorf("%w: %s is private", ErrChannelNotFound, username)
			}
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, username)
}

// GetMessages fetches messages from a channel, newest first
// offsetID: return messages older than this id (0 = newest messages)
// limit: max number of messages to fetch (max 100)
func (c *Client) GetMessages(ctx context.Context, channel *Channel, offsetID int, limit int) ([]Message, error) {
	if limit > maxPageSize {
		limit = maxPageSize
	}

	c.log.Debug().Int64("channel_id", channel.ID).Int("offset_id", offsetID).Int("limit", limit).Msg("telegram: waiting for rate limiter before GetMessages")
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	history, err := c.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer: &tg.InputPeerChannel{
			ChannelID:  channel.ID,
			AccessHash: channel.AccessHash,
		},
		OffsetID: offsetID,
		Limit:    limit,
	})
	if err != nil {
		if fw, ok := asFloodWait(err); ok {
			c.log.Warn().Dur("wait", fw.Wait).Msg("telegram: FLOOD_WAIT in GetMessages, updating rate limiter")
			c.rateLimiter.SetFloodWait(fw.Wait)
			return nil, fw
		}
		c.log.Error().Err(err).Int("offset_id", offsetID).Msg("telegram: MessagesGetHistory failed")
		return nil, fmt.Errorf("get history: %w", err)
	}

	return extractMessages(history, channel), nil
}

// extractMessages converts telegram message response to our Message type
func extractMessages(messagesClass tg.MessagesMessagesClass, channel *Channel) []Message {
	var raw []tg.MessageClass

	switch h := messagesClass.(type) {
	case *tg.MessagesChannelMessages:
		raw = h.Messages
	case *tg.MessagesMessagesSlice:
		raw = h.Messages
	case *tg.MessagesMessages:
		raw = h.Messages
	}

	messages := make([]Message, 0, len(raw))
	for _, msg := range raw {
		if m, ok := parseMessage(msg, channel); ok {
			messages = append(messages, m)
		}
	}
	return messages
}

// parseMessage converts a single telegram message to our Message type.
// Empty placeholders are dropped; service messages are kept without text.
func parseMessage(msg tg.MessageClass, channel *Channel) (Message, bool) {
	switch m := msg.(type) {
	case *tg.Message:
		out := Message{
			ID:        m.ID,
			ChannelID: channel.ID,
			Text:      m.Message,
			Date:      unixTime(m.Date),
			Views:     optional(m.GetViews()),
			Forwards:  optional(m.GetForwards()),
		}
		if reply, ok := m.GetReplyTo(); ok {
			out.ReplyToMsgID = replyToMsgID(reply)
		}
		if media, ok := m.GetMedia(); ok {
			out.Attachments = attachmentsOf(media)
		}
		if reactions, ok := m.GetReactions(); ok {
			out.Reactions = reactions.Results
		}
		return out, true
	case *tg.MessageService:
		out := Message{
			ID:        m.ID,
			ChannelID: channel.ID,
			Date:      unixTime(m.Date),
			Service:   true,
		}
		if reply, ok := m.GetReplyTo(); ok {
			out.ReplyToMsgID = replyToMsgID(reply)
		}
		return out, true
	default:
		return Message{}, false
	}
}

func replyToMsgID(reply tg.MessageReplyHeaderClass) *int {
	header, ok := reply.(*tg.MessageReplyHeader)
	if !ok {
		return nil
	}
	return optional(header.GetReplyToMsgID())
}

func unixTime(sec int) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), 0).UTC()
}

// optional maps a generated (value, ok) accessor onto a pointer, nil when unset.
func optional[T any](v T, ok bool) *T {
	if !ok {
		return nil
	}
	return &v
}
