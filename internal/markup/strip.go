// Package markup derives plain text from HTML-like documents.
package markup

import "strings"

// DefaultExpand lists the tags removed together with their content.
var DefaultExpand = []string{"script", "style", "noframes", "select", "option"}

const keepMarker = "[{("

// Strip removes comments, expand tags (with content) and every other tag
// from s, leaving their enclosed text. Tags named in keep survive verbatim.
// A nil expand means DefaultExpand; pass an empty non-nil slice to expand
// nothing.
//
// Each removal pass deletes every occurrence of the matched span, not just
// the first. An opening marker with no terminator is left as literal text.
func Strip(s string, keep, expand []string) string {
	if expand == nil {
		expand = DefaultExpand
	}

	// The leading space keeps every real match at index > 0.
	s = " " + s

	for _, k := range keep {
		if k == "" {
			continue
		}
		s = strings.ReplaceAll(s, "<"+k, keepMarker+k)
		s = strings.ReplaceAll(s, "</"+k, keepMarker+"/"+k)
	}

	s = removeSpans(s, "<!--", "-->", 0)

	for _, e := range expand {
		if e == "" {
			continue
		}
		// The closing search starts after the opening marker and matches
		// "<name>" through the end of "name>".
		s = removeSpans(s, "<"+e, e+">", len(e)+1)
	}

	s = removeSpans(s, "<", ">", 0)

	for _, k := range keep {
		if k == "" {
			continue
		}
		s = strings.ReplaceAll(s, keepMarker+k, "<"+k)
		s = strings.ReplaceAll(s, keepMarker+"/"+k, "</"+k)
	}

	return strings.Trim(s, " \t\n\r\x00\x0B")
}

// removeSpans repeatedly finds open (case-insensitive), then close at or
// after the open position plus skip, and deletes every occurrence of that
// exact span. It stops once open no longer occurs or has no terminator:
// the terminator search for any later open would start further right and
// fail as well.
func removeSpans(s, open, close string, skip int) string {
	for {
		start := indexFold(s, open, 1)
		if start < 0 {
			return s
		}
		from := start + skip
		end := indexFold(s, close, from)
		if end < 0 {
			return s
		}
		span := s[start : end+len(close)]
		s = strings.ReplaceAll(s, span, "")
	}
}

// indexFold is an ASCII case-insensitive strings.Index starting at from.
// It keeps byte offsets intact, which strings.ToLower does not guarantee
// for non-ASCII input.
func indexFold(s, sub string, from int) int {
	if from < 0 {
		from = 0
	}
	n := len(sub)
	for i := from; i+n <= len(s); i++ {
		if equalFoldASCII(s[i:i+n], sub) {
			return i
		}
	}
	return -1
}

func equalFoldASCII(a, b string) bool {
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca == cb {
			continue
		}
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
