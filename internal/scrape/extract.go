// Package scrape pulls public tunnel URLs out of raw terminal output captured
// from the tunnel client.
package scrape

import (
	"regexp"
	"strings"
)

var (
	ansiEscape   = regexp.MustCompile(`\x1B(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)
	controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
)

// Strip removes ANSI/VT100 escape sequences and non-printing control
// characters. Tab, LF and CR survive. Strip(Strip(s)) == Strip(s).
func Strip(s string) string {
	s = ansiEscape.ReplaceAllString(s, "")
	return controlChars.ReplaceAllString(s, "")
}

// Matcher knows what a provider's public tunnel URLs look like.
type Matcher struct {
	// Patterns are tried most specific first; all matches are collected.
	Patterns []*regexp.Regexp
	// Fallback is used only when Patterns find nothing.
	Fallback *regexp.Regexp
	// Exclude lists hosts that match the domain but are never tunnel endpoints.
	Exclude []string
}

// Pinggy matches the free, pro and legacy pinggy.link formats and ignores the
// dashboard.
func Pinggy() Matcher {
	return Matcher{
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`https?://[a-zA-Z0-9-]+\.a\.free\.pinggy\.link`), // free tier
			regexp.MustCompile(`https?://[a-zA-Z0-9-]+\.a\.pinggy\.link`),       // pro tier
			regexp.MustCompile(`https?://[a-zA-Z0-9-]+\.pinggy\.link`),          // legacy
		},
		Fallback: regexp.MustCompile(`https?://[^\s\]]+(?:pinggy\.link|pinggy\.io)[^\s\]]*`),
		Exclude:  []string{"dashboard.pinggy.io"},
	}
}

// Extract returns the unique tunnel URLs in already-cleaned text, in the
// order they were first seen. The bool reports whether the fallback pattern
// produced them.
func (m Matcher) Extract(text string) ([]string, bool) {
	var found []string
	for _, re := range m.Patterns {
		found = append(found, re.FindAllString(text, -1)...)
	}
	if urls := m.filter(found); len(urls) > 0 {
		return urls, false
	}
	if m.Fallback == nil {
		return nil, false
	}
	urls := m.filter(m.Fallback.FindAllString(text, -1))
	return urls, len(urls) > 0
}

func (m Matcher) filter(in []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(in))
	for _, u := range in {
		if m.excluded(u) {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func (m Matcher) excluded(u string) bool {
	for _, host := range m.Exclude {
		if strings.Contains(u, host) {
			return true
		}
	}
	return false
}
