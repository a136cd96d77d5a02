package collector

import (
	"fmt"
	"strings"

	"github.com/gotd/td/tg"

	"github.com/blockedby/tg-export/internal/telegram"
)

// Extract builds the exported record for msg posted in the channel with the given handle.
func Extract(msg telegram.Message, handle string) (MessageRecord, error) {
	if msg.ID <= 0 {
		return MessageRecord{}, &MalformedMessageError{MessageID: msg.ID, Reason: "non-positive id"}
	}

	rec := MessageRecord{
		ID:        msg.ID,
		Text:      msg.Text,
		Views:     msg.Views,
		Forwards:  msg.Forwards,
		MediaType: classifyMedia(msg.Attachments),
		Reactions: extractReactions(msg.Reactions),
		ReplyToID: msg.ReplyToMsgID,
		Permalink: Permalink(handle, msg.ID),
	}
	if !msg.Date.IsZero() {
		ts := msg.Date.UTC()
		rec.Timestamp = &ts
	}
	return rec, nil
}

// Permalink returns the public t.me link of a channel post.
func Permalink(handle string, id int) string {
	return fmt.Sprintf("https://t.me/%s/%d", strings.TrimPrefix(handle, "@"), id)
}

// classifyMedia picks one media type; the first set flag in precedence order wins.
func classifyMedia(a telegram.Attachments) MediaType {
	switch {
	case a.Photo:
		return MediaPhoto
	case a.Video:
		return MediaVideo
	case a.Voice:
		return MediaVoice
	case a.Document:
		return MediaDocument
	case a.Audio:
		return MediaAudio
	case a.Sticker:
		return MediaSticker
	case a.GIF:
		return MediaGIF
	case a.Poll:
		return MediaPoll
	default:
		return MediaNone
	}
}

// extractReactions renders reaction counters. Entries without a usable
// reaction are skipped.
func extractReactions(results []tg.ReactionCount) []Reaction {
	out := make([]Reaction, 0, len(results))
	for _, rc := range results {
		emoji := reactionLabel(rc.Reaction)
		if emoji == "" {
			continue
		}
		out = append(out, Reaction{Emoji: emoji, Count: rc.Count})
	}
	return out
}

func reactionLabel(r tg.ReactionClass) string {
	switch v := r.(type) {
	case nil:
		return ""
	case *tg.ReactionEmpty:
		return ""
	case *tg.ReactionEmoji:
		if v == nil {
			return ""
		}
		return v.Emoticon
	default:
		return v.String()
	}
}
