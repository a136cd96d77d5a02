package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/blockedby/tg-export/internal/collector"
)

// loadJob reads a YAML job file into a scrape request
func loadJob(path string) (*collector.ScrapeRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job %s: %w", path, err)
	}
	var req collector.ScrapeRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return &req, nil
}

// readLines returns the lines of path, or of stdin when path is "-"
func readLines(path string, stdin io.Reader) ([]string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read links: %w", err)
	}
	return collector.SplitLines(string(data)), nil
}

// buildRequest merges the job file, link file and positional links.
// Flags override the job only when explicitly set.
func buildRequest(job *collector.ScrapeRequest, links []string, flags scrapeFlags) collector.ScrapeRequest {
	var req collector.ScrapeRequest
	if job != nil {
		req = *job
	}
	req.Channels = append(append([]string(nil), req.Channels...), links...)

	if flags.modeSet {
		req.Mode = flags.mode
	}
	if flags.limitSet {
		req.Limit = flags.limit
	}
	if flags.fromDateSet {
		req.FromDate = flags.fromDate
	}
	if flags.wordLimitSet {
		req.WordLimit = flags.wordLimit
	}
	return req
}
