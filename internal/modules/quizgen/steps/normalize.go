package steps

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"
)

const parsePreviewRunes = 500

var (
	fencedBlockRe   = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")
	trailingCommaRe = regexp.MustCompile(`,\s*([\]}])`)
	quoteRepairer   = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")
	mcqOptionKeys   = []string{"A", "B", "C", "D"}
)

// ParseError means no JSON array of items could be recovered from the model
// output. Preview holds the first 500 runes of the raw text.
type ParseError struct {
	Preview string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("no parseable quiz JSON: %v", e.Err)
	}
	return "no parseable quiz JSON"
}

func (e *ParseError) Unwrap() error { return e.Err }

var errNotItemList = errors.New("payload is neither an array nor an object with an items array")

// ParseMCQ recovers multiple-choice items from raw model output. Items with a
// missing field, a missing option or an answer outside A-D are dropped.
func ParseMCQ(raw string) ([]QuizItem, error) {
	return parseItems(raw, normalizeMCQItem)
}

// ParseTF recovers true/false items. Answers are canonicalized to
// AnswerTrue/AnswerFalse; anything unrecognizable drops the item.
func ParseTF(raw string) ([]QuizItem, error) {
	return parseItems(raw, normalizeTFItem)
}

// parseItems tries the raw text as JSON, then the first fenced code block.
// Only output without a fence falls back to the first top-level {...} or
// [...] span. Fallback candidates are repaired (curly quotes, trailing commas)
// before decoding.
func parseItems(raw string, normalize func(map[string]any) (QuizItem, bool)) ([]QuizItem, error) {
	list, err := decodeItemList(strings.TrimSpace(raw))
	if err != nil {
		for _, candidate := range fallbackCandidates(raw) {
			if list, err = decodeItemList(repairJSON(candidate)); err == nil {
				break
			}
		}
	}
	if err != nil {
		return nil, &ParseError{Preview: preview(raw), Err: err}
	}

	out := make([]QuizItem, 0, len(list))
	for _, v := range list {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if item, ok := normalize(m); ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func fallbackCandidates(raw string) []string {
	if m := fencedBlockRe.FindStringSubmatch(raw); m != nil {
		return []string{m[1]}
	}
	var out []string
	if greedy, balanced, ok := firstSpan(raw); ok {
		out = append(out, greedy)
		if balanced != greedy {
			out = append(out, balanced)
		}
	}
	return out
}

// firstSpan finds the first '{' or '[' that has a matching closer later in s.
// greedy runs to the last closer of that kind; balanced stops where the
// brackets first balance.
func firstSpan(s string) (greedy, balanced string, ok bool) {
	for i := 0; i < len(s); i++ {
		var closer byte
		switch s[i] {
		case '{':
			closer = '}'
		case '[':
			closer = ']'
		default:
			continue
		}
		end := strings.LastIndexByte(s, closer)
		if end <= i {
			continue
		}
		greedy = s[i : end+1]
		balanced = greedy
		if j := balancedEnd(s, i); j > i {
			balanced = s[i : j+1]
		}
		return greedy, balanced, true
	}
	return "", "", false
}

func balancedEnd(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func repairJSON(s string) string {
	s = quoteRepairer.Replace(s)
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

func decodeItemList(s string) ([]any, error) {
	if s == "" {
		return nil, errors.New("empty payload")
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, errors.New("trailing data after JSON value")
	}
	switch t := v.(type) {
	case []any:
		return t, nil
	case map[string]any:
		if items, ok := t["items"].([]any); ok {
			return items, nil
		}
	}
	return nil, errNotItemList
}

func normalizeMCQItem(m map[string]any) (QuizItem, bool) {
	concept, ok1 := m["concept"].(string)
	question, ok2 := m["question"].(string)
	answer, ok3 := m["answer"].(string)
	rawOpts, ok4 := m["options"].(map[string]any)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return QuizItem{}, false
	}
	question = strings.TrimSpace(question)
	answer = strings.ToUpper(strings.TrimSpace(answer))
	if question == "" || !isOptionKey(answer) {
		return QuizItem{}, false
	}

	upper := make(map[string]any, len(rawOpts))
	for k, v := range rawOpts {
		upper[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	opts := make(map[string]string, len(mcqOptionKeys))
	for _, k := range mcqOptionKeys {
		v, ok := upper[k]
		if !ok || v == nil {
			return QuizItem{}, false
		}
		opts[k] = strings.TrimSpace(valueText(v))
	}

	return QuizItem{
		Type:        QuestionTypeMCQ,
		Concept:     conceptOrDefault(concept),
		Question:    question,
		Options:     opts,
		Answer:      answer,
		Explanation: optionalText(m["explanation"]),
	}, true
}

func normalizeTFItem(m map[string]any) (QuizItem, bool) {
	question, ok := m["question"].(string)
	if !ok || strings.TrimSpace(question) == "" {
		return QuizItem{}, false
	}
	answer, ok := canonicalTF(m["answer"])
	if !ok {
		return QuizItem{}, false
	}
	concept, _ := m["concept"].(string)
	return QuizItem{
		Type:        QuestionTypeTF,
		Concept:     conceptOrDefault(concept),
		Question:    strings.TrimSpace(question),
		Answer:      answer,
		Explanation: optionalText(m["explanation"]),
	}, true
}

func canonicalTF(v any) (string, bool) {
	switch t := v.(type) {
	case bool:
		if t {
			return AnswerTrue, true
		}
		return AnswerFalse, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "t", "yes", "y", "o", "○", "√", "✓", "是", "對", "对", "正確", "正确":
			return AnswerTrue, true
		case "false", "f", "no", "n", "x", "×", "✗", "否", "錯", "错", "錯誤", "错误":
			return AnswerFalse, true
		}
	}
	return "", false
}

func isOptionKey(s string) bool {
	for _, k := range mcqOptionKeys {
		if s == k {
			return true
		}
	}
	return false
}

func conceptOrDefault(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return DefaultConcept
	}
	return s
}

func optionalText(v any) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(valueText(v))
}

// valueText renders a decoded JSON scalar the way it was written.
func valueText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(t); err != nil {
			return fmt.Sprint(t)
		}
		return strings.TrimSpace(buf.String())
	}
}

func preview(raw string) string {
	if utf8.RuneCountInString(raw) <= parsePreviewRunes {
		return raw
	}
	return string([]rune(raw)[:parsePreviewRunes])
}
