package collector

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode selects when a channel scrape stops.
type Mode string

// scrape modes
const (
	ByCount   Mode = "by_count"
	ByDate    Mode = "by_date"
	FromStart Mode = "from_start"
	ByWords   Mode = "by_words"
)

// DefaultWordLimit is the word budget used by ByWords when none is given.
const DefaultWordLimit = 100000

// validation errors
var (
	ErrInvalidMode      = errors.New("mode must be one of by_count, by_date, from_start, by_words")
	ErrInvalidLimit     = errors.New("message limit must be positive")
	ErrFromDateRequired = errors.New("from_date is required for by_date mode")
	ErrInvalidDate      = errors.New("from_date must be in YYYY-MM-DD format")
	ErrInvalidWordLimit = errors.New("word limit must be positive for by_words mode")
	ErrNoChannels       = errors.New("at least one valid channel link is required")
)

// DefaultMessageLimit returns the retrieval ceiling a mode uses when the
// caller leaves it unset.
func DefaultMessageLimit(mode Mode) int {
	switch mode {
	case ByCount:
		return 1000
	case FromStart:
		return 100000
	default:
		return 20000000
	}
}

// ScrapeOptions control a single run. MessageLimit caps retrieval in every mode.
type ScrapeOptions struct {
	Mode         Mode
	MessageLimit int
	FromDate     *time.Time
	WordLimit    int
}

// WithDefaults fills zero limits with the mode defaults.
func (o ScrapeOptions) WithDefaults() ScrapeOptions {
	if o.Mode == "" {
		o.Mode = ByCount
	}
	if o.MessageLimit == 0 {
		o.MessageLimit = DefaultMessageLimit(o.Mode)
	}
	if o.Mode == ByWords && o.WordLimit == 0 {
		o.WordLimit = DefaultWordLimit
	}
	return o
}

// Validate checks the options are consistent with the mode.
func (o ScrapeOptions) Validate() error {
	switch o.Mode {
	case ByCount, FromStart:
	case ByDate:
		if o.FromDate == nil {
			return ErrFromDateRequired
		}
	case ByWords:
		if o.WordLimit <= 0 {
			return ErrInvalidWordLimit
		}
	default:
		return ErrInvalidMode
	}
	if o.MessageLimit <= 0 {
		return ErrInvalidLimit
	}
	return nil
}

// ScrapeRequest is the wire form of a run request
type ScrapeRequest struct {
	// Channels - links, @handles or bare handles
	Channels []string `json:"channels" yaml:"channels"`

	// Mode - by_count (default), by_date, from_start, by_words
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`

	// Limit - hard ceiling on retrieved messages per channel.
	// 0 means the mode default.
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty"`

	// FromDate - oldest calendar day to keep (YYYY-MM-DD), by_date only
	FromDate string `json:"from_date,omitempty" yaml:"from_date,omitempty"`

	// WordLimit - word budget per channel, by_words only
	WordLimit int `json:"word_limit,omitempty" yaml:"word_limit,omitempty"`
}

// Options validates the request and converts it to ScrapeOptions plus the
// accepted channel references. Lines rejected by ValidateLinks are returned
// separately so callers can report them.
func (r *ScrapeRequest) Options() (ScrapeOptions, []string, []string, error) {
	var lines []string
	for _, c := range r.Channels {
		lines = append(lines, SplitLines(c)...)
	}
	valid, invalid := ValidateLinks(lines)
	if len(valid) == 0 {
		return ScrapeOptions{}, nil, invalid, ErrNoChannels
	}

	if r.Limit < 0 {
		return ScrapeOptions{}, nil, invalid, ErrInvalidLimit
	}

	opts := ScrapeOptions{
		Mode:         Mode(strings.ToLower(strings.TrimSpace(r.Mode))),
		MessageLimit: r.Limit,
		WordLimit:    r.WordLimit,
	}

	if r.FromDate != "" {
		d, err := time.Parse("2006-01-02", r.FromDate)
		if err != nil {
			return ScrapeOptions{}, nil, invalid, fmt.Errorf("%w: %q", ErrInvalidDate, r.FromDate)
		}
		opts.FromDate = &d
	}

	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return ScrapeOptions{}, nil, invalid, err
	}
	return opts, valid, invalid, nil
}
