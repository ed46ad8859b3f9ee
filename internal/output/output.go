// Copyright 2026 Marcelo Cantos
// SPDX-License-Identifier: Apache-2.0

// Package output recovers results from backend output. The backend prints
// free-form text with zero or more JSON lines mixed in; Extract finds the
// first line that decodes and ignores the rest.
package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/marcelocantos/retrack/internal/errs"
	"github.com/marcelocantos/retrack/internal/logging"
)

// Kind tags a Payload.
type Kind int

const (
	Structured Kind = iota
	RawText
	ParseFailed
)

func (k Kind) String() string {
	switch k {
	case Structured:
		return "structured"
	case RawText:
		return "raw"
	default:
		return "parse_failed"
	}
}

// Payload is the interpreted output of one backend call. Value is set only
// when Kind is Structured; Text always holds the original output.
type Payload struct {
	Kind  Kind
	Value json.RawMessage
	Text  string
}

// Err returns a *errs.ParseError for a ParseFailed payload, nil otherwise.
func (p Payload) Err() error {
	if p.Kind == ParseFailed {
		return &errs.ParseError{Text: p.Text}
	}
	return nil
}

// Raw returns text unchanged, for callers that want no structure.
func Raw(text string) string { return text }

// Text wraps text as a RawText payload.
func Text(text string) Payload {
	return Payload{Kind: RawText, Text: text}
}

// Extract returns the first line of text that starts with '{' or '[' and
// decodes as JSON. Candidate lines that fail to decode are logged at warn
// level and skipped. log may be nil.
func Extract(text string, log *logging.Logger) Payload {
	for _, c := range candidates(text) {
		if !json.Valid([]byte(c.text)) {
			log.Warn("skipping undecodable output line", "line", c.line, "text", truncate(c.text, 200))
			continue
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, []byte(c.text)); err != nil {
			continue
		}
		return Payload{Kind: Structured, Value: compact.Bytes(), Text: text}
	}
	return Payload{Kind: ParseFailed, Text: text}
}

// Decode returns the first candidate line of text that unmarshals into T.
// Lines that are not JSON, or are JSON of another shape, are logged and
// skipped. When no line fits, the error is a *errs.ParseError carrying the
// full text and the last decode failure.
func Decode[T any](text string, log *logging.Logger) (T, error) {
	var last error
	for _, c := range candidates(text) {
		var v T
		if err := json.Unmarshal([]byte(c.text), &v); err != nil {
			log.Warn("skipping output line that does not decode", "line", c.line, "text", truncate(c.text, 200), "error", err)
			last = err
			continue
		}
		return v, nil
	}
	var zero T
	return zero, &errs.ParseError{Text: text, Err: last}
}

type candidate struct {
	line int
	text string
}

// candidates returns the trimmed lines of text that start with '{' or '['.
func candidates(text string) []candidate {
	var out []candidate
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || (line[0] != '{' && line[0] != '[') {
			continue
		}
		out = append(out, candidate{line: i + 1, text: line})
	}
	return out
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
