package steps

import (
	"strings"
	"testing"
)

func TestEmbeddedPrompts(t *testing.T) {
	p := testPrompts(t)

	req, err := p.Request(PromptChunkSummary, PromptInput{Index: 2, Total: 5, Text: "  內容  "})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !strings.Contains(req.System, "第 2 段") || req.User != "內容" {
		t.Fatalf("unexpected chunk prompt: %#v", req)
	}
	if req.Temperature != 0.3 || req.MaxTokens != 400 {
		t.Fatalf("unexpected chunk params: %v %d", req.Temperature, req.MaxTokens)
	}

	strict, err := p.Request(PromptMCQStrict, PromptInput{Count: 3, Text: "摘要"})
	if err != nil {
		t.Fatalf("Request strict: %v", err)
	}
	if strict.System != "你只會輸出 JSON。" || strict.Temperature != 0.1 {
		t.Fatalf("unexpected strict prompt: %#v", strict)
	}
	if !strings.HasPrefix(strict.User, "摘要\n\n請嚴格輸出 3 題選擇題") {
		t.Fatalf("strict user prompt should append the instruction: %q", strict.User)
	}

	combine, _ := p.Request(PromptCombine, PromptInput{Text: "x"})
	for _, heading := range []string{"【課程概述】", "【學習重點】", "【完成後收穫】"} {
		if !strings.Contains(combine.System, heading) {
			t.Fatalf("combine prompt missing %s", heading)
		}
	}

	if got := p.ChunkFailure(2); got != "第 3 段摘要失敗" {
		t.Fatalf("ChunkFailure: %q", got)
	}
	if got := p.CombineFailure(); got != "整合摘要失敗" {
		t.Fatalf("CombineFailure: %q", got)
	}
	if _, err := p.Request("nope", PromptInput{}); err == nil {
		t.Fatalf("expected error for unknown prompt")
	}
}

func TestParsePromptsRejectsIncompleteSets(t *testing.T) {
	cases := map[string]string{
		"bad version": "version: 2\n",
		"missing":     "version: 1\nprompts:\n  mcq:\n    temperature: 0.2\n    user: x\n",
		"bad yaml":    "version: [",
	}
	for name, doc := range cases {
		if _, err := ParsePrompts([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
