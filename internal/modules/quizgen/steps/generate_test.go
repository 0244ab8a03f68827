package steps

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

const twoMCQ = `[
 {"concept":"c1","question":"q1","options":{"A":"1","B":"2","C":"3","D":"4"},"answer":"A","explanation":"e1"},
 {"concept":"c2","question":"q2","options":{"A":"1","B":"2","C":"3","D":"4"},"answer":"B","explanation":"e2"}
]`

func newTestGenerator(t *testing.T, llm Completer) *Generator {
	t.Helper()
	return NewGenerator(logger.Nop(), llm, testPrompts(t), time.Second)
}

func TestGenerateMCQFirstAttempt(t *testing.T) {
	llm := &scriptedLLM{script: []reply{{text: twoMCQ}}}
	res := newTestGenerator(t, llm).GenerateMCQ(context.Background(), "summary", 2)
	if res.Err != nil || len(res.Items) != 2 || res.Attempts != 1 {
		t.Fatalf("unexpected result: %#v", res)
	}
	call := llm.Calls()[0]
	if call.Temperature != 0.2 || call.MaxTokens != 1500 || call.User != "summary" {
		t.Fatalf("unexpected request: %#v", call)
	}
	if !strings.Contains(call.System, "產生 2 題選擇題") {
		t.Fatalf("count not rendered: %q", call.System)
	}
}

func TestGenerateMCQRetriesWithStrictPrompt(t *testing.T) {
	cases := []struct {
		name  string
		first reply
	}{
		{"unparseable", reply{text: "I cannot comply."}},
		{"api error", reply{err: errors.New("openai http 502")}},
	}
	for _, tc := range cases {
		llm := &scriptedLLM{script: []reply{tc.first, {text: "```json\n" + twoMCQ + "\n```"}}}
		res := newTestGenerator(t, llm).GenerateMCQ(context.Background(), "summary", 3)
		if res.Err != nil || len(res.Items) != 2 || res.Attempts != 2 {
			t.Fatalf("%s: unexpected result %#v", tc.name, res)
		}
		calls := llm.Calls()
		if len(calls) != 2 {
			t.Fatalf("%s: expected 2 calls, got %d", tc.name, len(calls))
		}
		if calls[1].System != "你只會輸出 JSON。" || calls[1].Temperature != 0.1 {
			t.Fatalf("%s: retry should use strict prompt: %#v", tc.name, calls[1])
		}
	}
}

func TestGenerateMCQGivesUpAfterOneRetry(t *testing.T) {
	llm := &scriptedLLM{script: []reply{{text: "nope"}, {text: "still nope"}, {text: twoMCQ}}}
	res := newTestGenerator(t, llm).GenerateMCQ(context.Background(), "summary", 3)
	if res.Err == nil || res.Err.Kind != KindParse || len(res.Items) != 0 || res.Items == nil {
		t.Fatalf("unexpected result: %#v", res)
	}
	if len(llm.Calls()) != 2 {
		t.Fatalf("expected exactly 2 calls, got %d", len(llm.Calls()))
	}
}

func TestGenerateMCQCapsToCount(t *testing.T) {
	llm := &scriptedLLM{script: []reply{{text: twoMCQ}}}
	res := newTestGenerator(t, llm).GenerateMCQ(context.Background(), "summary", 1)
	if len(res.Items) != 1 || res.Items[0].Question != "q1" {
		t.Fatalf("unexpected items: %#v", res.Items)
	}
}

func TestGenerateTFSingleShot(t *testing.T) {
	llm := &scriptedLLM{script: []reply{{text: "not json"}, {text: `[{"question":"q","answer":"True"}]`}}}
	res := newTestGenerator(t, llm).GenerateTF(context.Background(), "summary", 2)
	if res.Err == nil || len(res.Items) != 0 || res.Attempts != 1 {
		t.Fatalf("unexpected result: %#v", res)
	}
	if len(llm.Calls()) != 1 {
		t.Fatalf("tf must not retry, got %d calls", len(llm.Calls()))
	}

	llm = &scriptedLLM{script: []reply{{text: `[{"question":"q","answer":"True"}]`}}}
	res = newTestGenerator(t, llm).GenerateTF(context.Background(), "summary", 2)
	if res.Err != nil || len(res.Items) != 1 || res.Items[0].Answer != AnswerTrue {
		t.Fatalf("unexpected result: %#v", res)
	}
	if llm.Calls()[0].Temperature != 0.5 {
		t.Fatalf("tf temperature: %v", llm.Calls()[0].Temperature)
	}
}

func TestGenerateZeroCountSkipsCall(t *testing.T) {
	llm := &scriptedLLM{}
	g := newTestGenerator(t, llm)
	if res := g.GenerateMCQ(context.Background(), "s", 0); len(res.Items) != 0 || res.Err != nil {
		t.Fatalf("unexpected mcq result: %#v", res)
	}
	if res := g.GenerateTF(context.Background(), "s", -1); len(res.Items) != 0 || res.Err != nil {
		t.Fatalf("unexpected tf result: %#v", res)
	}
	if len(llm.Calls()) != 0 {
		t.Fatalf("expected no calls")
	}
}
