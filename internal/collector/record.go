package collector

import (
	"bytes"
	"encoding/json"
	"time"
)

// MediaType is the single attachment kind reported for a message.
type MediaType string

// media types, in classification precedence order
const (
	MediaPhoto    MediaType = "photo"
	MediaVideo    MediaType = "video"
	MediaVoice    MediaType = "voice"
	MediaDocument MediaType = "document"
	MediaAudio    MediaType = "audio"
	MediaSticker  MediaType = "sticker"
	MediaGIF      MediaType = "gif"
	MediaPoll     MediaType = "poll"
	MediaNone     MediaType = "none"
)

// StopReason records which mode-specific condition ended a channel scrape.
type StopReason string

// stop reasons
const (
	StopDate  StopReason = "date"
	StopWords StopReason = "words"
)

// Reaction is one emoji and how many times it was used.
type Reaction struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// MessageRecord is the exported form of a channel message.
type MessageRecord struct {
	ID        int
	Timestamp *time.Time
	Text      string
	Views     *int
	Forwards  *int
	MediaType MediaType
	Reactions []Reaction
	ReplyToID *int
	Permalink string
}

type messageRecordJSON struct {
	ID           int        `json:"id"`
	Date         *string    `json:"date"`
	DateUnixtime *int64     `json:"date_unixtime"`
	Text         string     `json:"text"`
	Views        *int       `json:"views"`
	Forwards     *int       `json:"forwards"`
	MediaType    MediaType  `json:"media_type"`
	Reactions    []Reaction `json:"reactions"`
	ReplyToMsgID *int       `json:"reply_to_msg_id"`
	URL          string     `json:"url"`
}

// MarshalJSON writes the record with absent optional fields as null.
func (r MessageRecord) MarshalJSON() ([]byte, error) {
	out := messageRecordJSON{
		ID:           r.ID,
		Text:         r.Text,
		Views:        r.Views,
		Forwards:     r.Forwards,
		MediaType:    r.MediaType,
		Reactions:    r.Reactions,
		ReplyToMsgID: r.ReplyToID,
		URL:          r.Permalink,
	}
	if out.Reactions == nil {
		out.Reactions = []Reaction{}
	}
	if r.Timestamp != nil {
		date := r.Timestamp.UTC().Format(time.RFC3339)
		unix := r.Timestamp.Unix()
		out.Date = &date
		out.DateUnixtime = &unix
	}

	// html escaping is left to the outer encoder
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (r *MessageRecord) UnmarshalJSON(data []byte) error {
	var in messageRecordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = MessageRecord{
		ID:        in.ID,
		Text:      in.Text,
		Views:     in.Views,
		Forwards:  in.Forwards,
		MediaType: in.MediaType,
		Reactions: in.Reactions,
		ReplyToID: in.ReplyToMsgID,
		Permalink: in.URL,
	}
	if in.DateUnixtime != nil {
		ts := time.Unix(*in.DateUnixtime, 0).UTC()
		r.Timestamp = &ts
	}
	return nil
}

// ChannelResult holds the records collected from one channel, newest first.
// Incomplete is set when paging ended on an error; Messages then hold what
// was read before it and Error carries the cause.
type ChannelResult struct {
	Channel         string          `json:"channel"`
	ChannelID       int64           `json:"channel_id"`
	ChannelTitle    *string         `json:"channel_title"`
	Messages        []MessageRecord `json:"messages"`
	TotalMessages   int             `json:"total_messages"`
	TotalWords      *int            `json:"total_words"`
	StopReason      *StopReason     `json:"stop_reason"`
	SourceExhausted bool            `json:"source_exhausted"`
	Incomplete      bool            `json:"incomplete"`
	Error           *string         `json:"error,omitempty"`
}

// ScrapeReport aggregates the channels of one run.
type ScrapeReport struct {
	ScrapedAt     time.Time       `json:"scraped_at"`
	TotalChannels int             `json:"total_channels"`
	TotalMessages int             `json:"total_messages"`
	Channels      []ChannelResult `json:"channels"`
}

func newReport(channels []ChannelResult, at time.Time) *ScrapeReport {
	if channels == nil {
		channels = []ChannelResult{}
	}
	total := 0
	for _, ch := range channels {
		total += ch.TotalMessages
	}
	return &ScrapeReport{
		ScrapedAt:     at,
		TotalChannels: len(channels),
		TotalMessages: total,
		Channels:      channels,
	}
}
