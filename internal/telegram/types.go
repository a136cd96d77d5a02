package telegram

import (
	"time"

	"github.com/gotd/td/tg"
)

// Message represents a parsed telegram channel message.
// Optional counters are nil when telegram did not send them.
type Message struct {
	ID           int                // message id (unique within channel)
	ChannelID    int64              // channel id
	Text         string             // message text content, empty for service messages
	Date         time.Time          // message creation timestamp, zero when absent
	Views        *int               // view count
	Forwards     *int               // forward count
	ReplyToMsgID *int               // id of the message this one replies to
	Service      bool               // service message (pin, title change, ...)
	Attachments  Attachments        // attachment kinds present on the message
	Reactions    []tg.ReactionCount // raw reaction results
}

// Attachments flags every attachment kind a message carries.
// More than one flag may be set (e.g. a video sticker).
type Attachments struct {
	Photo    bool
	Video    bool
	Voice    bool
	Document bool // file without a more specific kind
	Audio    bool
	Sticker  bool
	GIF      bool
	Poll     bool
}

// Channel represents a telegram channel info
type Channel struct {
	ID         int64  // channel id
	AccessHash int64  // access hash for api calls
	Username   string // channel username (without @), empty for channels without one
	Title      string // channel title
}
