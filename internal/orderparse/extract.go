package orderparse

import (
	"strings"
	"unicode"
)

// ExtractJSON isolates the first balanced JSON object or array in a model
// reply. Prose around the value and markdown fences are ignored. Brackets
// inside string literals do not count towards nesting.
//
// The returned substring is not validated as JSON; see DecodeReply.
func ExtractJSON(reply string) (string, error) {
	text := strings.TrimFunc(reply, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\ufeff'
	})

	if inner, ok := fencedBlock(text); ok {
		text = inner
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", &MalformedReplyError{Reason: ReasonNoJSON, Raw: reply}
	}

	end, ok := scanBalanced(text, start)
	if !ok {
		return "", &MalformedReplyError{Reason: ReasonUnbalanced, Raw: reply}
	}
	return text[start : end+1], nil
}

// fencedBlock returns the content of the first ``` fenced block. An optional
// language tag on the opening line (```json) is skipped. An unterminated
// fence yields everything after the opening line.
func fencedBlock(s string) (string, bool) {
	open := strings.Index(s, "```")
	if open < 0 {
		return "", false
	}
	rest := s[open+3:]

	// Drop the info string, e.g. "json", up to the first newline. A fence
	// written inline as ```{...}``` has no info string.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && isInfoString(rest[:nl]) {
		rest = rest[nl+1:]
	} else if isInfoString(rest) {
		return "", false
	}

	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest), true
}

func isInfoString(s string) bool {
	for _, r := range strings.TrimSpace(s) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

// scanBalanced walks from the opening bracket at start and returns the index
// of its matching closer. Only the opening bracket's own kind is counted.
func scanBalanced(s string, start int) (int, bool) {
	open := s[start]
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}

	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
