package enrich

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// parseStage identifies which stage of the parse pipeline produced a result.
type parseStage int

const (
	stageStrict parseStage = iota
	stageSubstring
	stageRepaired
	stageFailed
)

func (s parseStage) String() string {
	switch s {
	case stageStrict:
		return "strict"
	case stageSubstring:
		return "substring"
	case stageRepaired:
		return "repaired"
	default:
		return "failed"
	}
}

// ParseFailure means all three parse stages were exhausted for one
// generation call. The orchestrator converts it into default output for
// that call; it never escapes Analyze.
type ParseFailure struct {
	Raw string
}

func (e *ParseFailure) Error() string {
	return "enrich: generation output is not parseable JSON"
}

var fenceRe = regexp.MustCompile("^```(?:json)?\\s*|\\s*```$")

// parseInto decodes raw generation output into out. Three stages, in order:
// a strict parse of the whole text, a parse of the first-{ to last-}
// substring, then a structural repair of the fragment from the first {.
// Repair exists because output capped at max_tokens arrives cut off
// mid-document.
func parseInto(raw string, out any) (parseStage, error) {
	text := fenceRe.ReplaceAllString(strings.TrimSpace(raw), "")

	if err := json.Unmarshal([]byte(text), out); err == nil {
		return stageStrict, nil
	}

	start := strings.Index(text, "{")
	if start < 0 {
		return stageFailed, eris.Wrap(&ParseFailure{Raw: raw}, "enrich: no JSON object in output")
	}
	if end := strings.LastIndex(text, "}"); end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), out); err == nil {
			return stageSubstring, nil
		}
	}

	for _, candidate := range repairTruncated(text[start:]) {
		if err := json.Unmarshal([]byte(candidate), out); err == nil {
			return stageRepaired, nil
		}
	}
	return stageFailed, eris.Wrap(&ParseFailure{Raw: raw}, "enrich: parse failed after repair")
}

// frame tracks one open { or [ during the repair scan. start is the byte
// offset just past the opener or the most recent same-level comma, i.e.
// where the member or element currently under construction begins.
type frame struct {
	open  byte
	start int
}

// repairTruncated closes a JSON fragment that was cut off mid-stream. It
// scans from the first {, keeping a stack of open braces/brackets and a
// string-literal flag (backslash escapes respected) so structural bytes
// inside strings are ignored. It returns up to two candidates to reparse:
// the fragment with a dangling string closed, a trailing comma stripped and
// the open stack closed in reverse order; and, if that still carried an
// incomplete trailing member (a dangling "key": with no value, or a half
// written literal), the same thing with that member dropped.
func repairTruncated(s string) []string {
	var stack []frame
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, frame{open: c, start: i + 1})
		case '}':
			if n := len(stack); n > 0 && stack[n-1].open == '{' {
				stack = stack[:n-1]
			}
		case ']':
			if n := len(stack); n > 0 && stack[n-1].open == '[' {
				stack = stack[:n-1]
			}
		case ',':
			if n := len(stack); n > 0 {
				stack[n-1].start = i + 1
			}
		}
	}

	if len(stack) == 0 {
		// Balanced but still unparseable; nothing structural to fix.
		return nil
	}

	closers := make([]byte, 0, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].open == '{' {
			closers = append(closers, '}')
		} else {
			closers = append(closers, ']')
		}
	}

	keep := s
	if inString {
		keep += `"`
	}
	keep = strings.TrimSuffix(strings.TrimRight(keep, " \t\r\n"), ",")
	candidates := []string{keep + string(closers)}

	// Drop the member that was mid-construction when the cut happened.
	drop := s[:stack[len(stack)-1].start]
	drop = strings.TrimSuffix(strings.TrimRight(drop, " \t\r\n"), ",")
	candidates = append(candidates, drop+string(closers))

	return candidates
}
