package steps

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultChunkMin = 300
	DefaultChunkMax = 1000
)

// SplitText cuts a transcript into chunks near sentence boundaries. Lengths are
// counted in runes. A text no longer than maxLen comes back as a single chunk.
// Sentences accumulate while the buffer stays within maxLen; past that the
// buffer is flushed only once it holds at least minLen runes, so minLen wins
// over maxLen and a chunk may exceed maxLen.
func SplitText(text string, minLen, maxLen int) []string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	var buf strings.Builder
	bufLen := 0
	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			chunks = append(chunks, s)
		}
		buf.Reset()
		bufLen = 0
	}

	prev := ""
	for _, sentence := range splitSentences(text) {
		n := utf8.RuneCountInString(sentence)
		sep := 0
		if bufLen > 0 && needsSpace(prev) {
			sep = 1
		}
		if bufLen+sep+n > maxLen && bufLen >= minLen {
			flush()
			sep = 0
		}
		if sep > 0 {
			buf.WriteByte(' ')
		}
		bufLen += sep
		buf.WriteString(sentence)
		bufLen += n
		prev = sentence
	}
	flush()
	return chunks
}

// splitSentences splits after sentence-ending punctuation and drops the
// whitespace that follows it. Full-width marks always end a sentence; ASCII
// marks only when followed by whitespace or the end of the text, so "3.14"
// stays intact.
func splitSentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !endsSentence(runes, i) {
			continue
		}
		out = append(out, string(runes[start:i+1]))
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

// needsSpace reports whether a sentence ended with ASCII punctuation, which
// splitSentences only cuts at when whitespace followed. Full-width marks are
// rejoined without a separator.
func needsSpace(sentence string) bool {
	r, _ := utf8.DecodeLastRuneInString(sentence)
	return r == '.' || r == '!' || r == '?'
}

func endsSentence(runes []rune, i int) bool {
	switch runes[i] {
	case '。', '！', '？':
		return true
	case '.', '!', '?':
		return i == len(runes)-1 || unicode.IsSpace(runes[i+1])
	default:
		return false
	}
}
