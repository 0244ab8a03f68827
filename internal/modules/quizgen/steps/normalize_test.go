package steps

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParseMCQFencedBlockWithChatter(t *testing.T) {
	raw := "Sure! ```json\n[{\"concept\":\"x\",\"question\":\"q\",\"options\":{\"A\":\"1\",\"B\":\"2\",\"C\":\"3\",\"D\":\"4\"},\"answer\":\"b\",\"explanation\":\"e\"}]\n```"
	items, err := ParseMCQ(raw)
	if err != nil {
		t.Fatalf("ParseMCQ: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	it := items[0]
	if it.Answer != "B" || it.Concept != "x" || it.Question != "q" || it.Explanation != "e" {
		t.Fatalf("unexpected item: %#v", it)
	}
	if it.Options["A"] != "1" || it.Options["D"] != "4" || it.Type != QuestionTypeMCQ {
		t.Fatalf("unexpected options: %#v", it.Options)
	}
}

func TestParseMCQShapes(t *testing.T) {
	valid := `{"concept":" 慣性 ","question":" 何謂慣性？ ","options":{"A":"a","B":"b","C":"c","D":"d"},"answer":" c "}`
	cases := []struct {
		name string
		raw  string
		want int
	}{
		{"bare array", "[" + valid + "]", 1},
		{"items object", `{"items":[` + valid + `,` + valid + `]}`, 2},
		{"empty array", "[]", 0},
		{"span inside prose", "以下是題目：\n[" + valid + "]\n希望有幫助", 1},
		{"curly quotes and trailing comma", "[{“concept”:“c”,“question”:“q”,“options”:{“A”:“1”,“B”:“2”,“C”:“3”,“D”:“4”,},“answer”:“A”,},]", 1},
		{"bare fence", "```\n[" + valid + "]\n```", 1},
	}
	for _, tc := range cases {
		items, err := ParseMCQ(tc.raw)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if len(items) != tc.want {
			t.Fatalf("%s: got %d items want %d", tc.name, len(items), tc.want)
		}
	}
	items, _ := ParseMCQ("[" + valid + "]")
	if items[0].Concept != "慣性" || items[0].Question != "何謂慣性？" || items[0].Answer != "C" {
		t.Fatalf("fields not trimmed: %#v", items[0])
	}
}

func TestParseMCQDropsInvalidItems(t *testing.T) {
	raw := `[
		{"concept":"a","question":"q1","options":{"A":"1","B":"2","C":"3"},"answer":"A"},
		{"concept":"a","question":"q2","options":{"A":"1","B":"2","C":"3","D":"4"},"answer":"E"},
		{"question":"q3","options":{"A":"1","B":"2","C":"3","D":"4"},"answer":"A"},
		{"concept":"a","question":"q4","options":"A,B,C,D","answer":"A"},
		{"concept":"","question":"q5","options":{"a":1,"b":2.5,"c":true,"d":"x"},"answer":"d"},
		"not an object"
	]`
	items, err := ParseMCQ(raw)
	if err != nil {
		t.Fatalf("ParseMCQ: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected only q5 to survive, got %#v", items)
	}
	it := items[0]
	if it.Question != "q5" || it.Answer != "D" || it.Concept != DefaultConcept {
		t.Fatalf("unexpected survivor: %#v", it)
	}
	if it.Options["A"] != "1" || it.Options["B"] != "2.5" || it.Options["C"] != "true" {
		t.Fatalf("option coercion: %#v", it.Options)
	}
}

func TestParseMCQUnparseable(t *testing.T) {
	raw := strings.Repeat("模型拒絕回答。", 200)
	_, err := ParseMCQ(raw)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if utf8.RuneCountInString(pe.Preview) != parsePreviewRunes {
		t.Fatalf("preview length: %d", utf8.RuneCountInString(pe.Preview))
	}

	for _, raw := range []string{"", `{"questions":[]}`, "[{broken"} {
		if _, err := ParseMCQ(raw); !errors.As(err, &pe) {
			t.Fatalf("%q: expected ParseError, got %v", raw, err)
		}
	}
}

func TestParseMCQBrokenFenceSkipsSpans(t *testing.T) {
	item := `{"concept":"x","question":"q","options":{"A":"1","B":"2","C":"3","D":"4"},"answer":"A"}`
	raw := "例如 [" + item + "] 這種格式：\n```json\n[{\"concept\": \"y\", \"question\":\n```"
	var pe *ParseError
	if _, err := ParseMCQ(raw); !errors.As(err, &pe) {
		t.Fatalf("a broken fenced block should not fall back to prose, got %v", err)
	}
	if got := fallbackCandidates(raw); len(got) != 1 || strings.Contains(got[0], "例如") {
		t.Fatalf("fenced output should yield only the fence body: %#v", got)
	}

	items, err := ParseMCQ("好的： [" + item + "] 完成")
	if err != nil || len(items) != 1 {
		t.Fatalf("unfenced span: %#v, %v", items, err)
	}
}

func TestParseTF(t *testing.T) {
	raw := "```json\n[" +
		`{"concept":"力學","question":"牛頓第一定律描述慣性。","answer":true,"explanation":"定義"},` +
		`{"question":"力等於質量乘以速度。","answer":"錯"},` +
		`{"question":"光速有限。","answer":"maybe"},` +
		`{"question":"","answer":"True"}` +
		"]\n```"
	items, err := ParseTF(raw)
	if err != nil {
		t.Fatalf("ParseTF: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %#v", items)
	}
	if items[0].Answer != AnswerTrue || items[0].Concept != "力學" || items[0].Type != QuestionTypeTF {
		t.Fatalf("first item: %#v", items[0])
	}
	if items[1].Answer != AnswerFalse || items[1].Concept != DefaultConcept {
		t.Fatalf("second item: %#v", items[1])
	}
}

func TestFirstSpanBalanced(t *testing.T) {
	greedy, balanced, ok := firstSpan(`note [1] then {"a":"}"} trailing }`)
	if !ok {
		t.Fatalf("expected a span")
	}
	if greedy != `[1]` || balanced != `[1]` {
		t.Fatalf("got greedy=%q balanced=%q", greedy, balanced)
	}
	greedy, balanced, _ = firstSpan(`x {"a":1} y {"b":2} z`)
	if greedy != `{"a":1} y {"b":2}` || balanced != `{"a":1}` {
		t.Fatalf("got greedy=%q balanced=%q", greedy, balanced)
	}
}
