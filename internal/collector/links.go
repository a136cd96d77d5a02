package collector

import (
	"regexp"
	"strings"
)

// link prefixes stripped by NormalizeLink, first match wins
var linkPrefixes = []string{
	"https://t.me/",
	"http://t.me/",
	"t.me/",
}

var (
	atHandlePrefix = regexp.MustCompile(`^@[A-Za-z0-9_]{5,}`)
	bareHandle     = regexp.MustCompile(`^[A-Za-z0-9_]{5,32}$`)
)

// NormalizeLink turns a t.me link, @handle or bare handle into a bare handle.
// Literal prefixes are stripped until none is left, so "@@foo" and
// "t.me/t.me/foo" both become "foo" and a second call changes nothing.
// An empty result means the input held no handle.
func NormalizeLink(raw string) string {
	s := strings.TrimSpace(raw)
	for {
		next := stripLinkPrefix(s)
		if next == s {
			return s
		}
		s = next
	}
}

func stripLinkPrefix(s string) string {
	for _, prefix := range linkPrefixes {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	s = strings.TrimPrefix(s, "@")
	return strings.TrimSpace(s)
}

// ValidateLinks splits user input lines into plausible channel references
// and rejects, keeping input order. Blank lines are dropped from both.
func ValidateLinks(lines []string) (valid, invalid []string) {
	for _, line := range lines {
		link := strings.TrimSpace(line)
		if link == "" {
			continue
		}
		if isChannelLink(link) {
			valid = append(valid, link)
		} else {
			invalid = append(invalid, link)
		}
	}
	return valid, invalid
}

func isChannelLink(link string) bool {
	return atHandlePrefix.MatchString(link) ||
		strings.Contains(link, "t.me/") ||
		bareHandle.MatchString(link)
}

// SplitLines splits a pasted block of links into lines.
func SplitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}
