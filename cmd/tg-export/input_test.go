package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/tg-export/internal/collector"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJob(t *testing.T) {
	path := writeFile(t, "job.yaml", `
channels:
  - "@durov"
  - https://t.me/telegram
mode: by_date
from_date: "2024-03-01"
limit: 500
`)

	job, err := loadJob(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"@durov", "https://t.me/telegram"}, job.Channels)
	assert.Equal(t, "by_date", job.Mode)
	assert.Equal(t, "2024-03-01", job.FromDate)
	assert.Equal(t, 500, job.Limit)

	opts, refs, rejected, err := job.Options()
	require.NoError(t, err)
	assert.Equal(t, collector.ByDate, opts.Mode)
	assert.Len(t, refs, 2)
	assert.Empty(t, rejected)
}

func TestLoadJob_InvalidYAML(t *testing.T) {
	path := writeFile(t, "bad.yaml", "channels: [unterminated")
	_, err := loadJob(path)
	assert.ErrorContains(t, err, "invalid YAML")
}

func TestReadLines(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		path := writeFile(t, "links.txt", "@durov\r\ntelegram\n")
		lines, err := readLines(path, nil)
		require.NoError(t, err)
		assert.Contains(t, lines, "@durov")
		assert.Contains(t, lines, "telegram")
	})

	t.Run("stdin", func(t *testing.T) {
		lines, err := readLines("-", strings.NewReader("a_channel\nb_channel"))
		require.NoError(t, err)
		assert.Equal(t, []string{"a_channel", "b_channel"}, lines)
	})
}

func TestBuildRequest(t *testing.T) {
	job := &collector.ScrapeRequest{Channels: []string{"@durov"}, Mode: "by_words", WordLimit: 10}

	t.Run("job values survive unset flags", func(t *testing.T) {
		req := buildRequest(job, []string{"telegram"}, scrapeFlags{mode: "by_count", wordLimit: 99})
		assert.Equal(t, []string{"@durov", "telegram"}, req.Channels)
		assert.Equal(t, "by_words", req.Mode)
		assert.Equal(t, 10, req.WordLimit)
	})

	t.Run("explicit flags win", func(t *testing.T) {
		req := buildRequest(job, nil, scrapeFlags{mode: "from_start", modeSet: true, limit: 5, limitSet: true})
		assert.Equal(t, "from_start", req.Mode)
		assert.Equal(t, 5, req.Limit)
	})

	t.Run("no job", func(t *testing.T) {
		req := buildRequest(nil, []string{"@durov"}, scrapeFlags{mode: "by_count", modeSet: true})
		assert.Equal(t, []string{"@durov"}, req.Channels)
		assert.Equal(t, "by_count", req.Mode)
	})

	// the job's slice is not aliased
	assert.Equal(t, []string{"@durov"}, job.Channels)
}
