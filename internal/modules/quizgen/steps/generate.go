package steps

import (
	"context"
	"time"

	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

// ItemsResult is the outcome of one generation step. Items is empty (never
// nil) when Err is set.
type ItemsResult struct {
	Items    []QuizItem
	Attempts int
	Err      *StepError
}

type Generator struct {
	log         *logger.Logger
	llm         Completer
	prompts     *Prompts
	callTimeout time.Duration
}

func NewGenerator(log *logger.Logger, llm Completer, prompts *Prompts, callTimeout time.Duration) *Generator {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &Generator{log: log.With("step", "Generator"), llm: llm, prompts: prompts, callTimeout: callTimeout}
}

// GenerateMCQ asks for count multiple-choice items. A failed call or
// unparseable output gets exactly one retry with the strict prompt.
// At most count items are returned.
func (g *Generator) GenerateMCQ(ctx context.Context, summary string, count int) ItemsResult {
	if count <= 0 {
		return ItemsResult{Items: []QuizItem{}}
	}
	in := PromptInput{Count: count, Text: summary}

	items, err := g.attempt(ctx, PromptMCQ, in, ParseMCQ)
	if err == nil {
		return ItemsResult{Items: capItems(items, count), Attempts: 1}
	}
	g.log.Warn("mcq generation failed; retrying with strict prompt", "count", count, "error", err.Error())

	items, err = g.attempt(ctx, PromptMCQStrict, in, ParseMCQ)
	if err != nil {
		se := newStepError(PromptMCQStrict, err)
		g.log.Warn("mcq retry failed", "count", count, "kind", string(se.Kind), "error", err.Error())
		return ItemsResult{Items: []QuizItem{}, Attempts: 2, Err: se}
	}
	return ItemsResult{Items: capItems(items, count), Attempts: 2}
}

// GenerateTF asks for count true/false items in a single attempt.
func (g *Generator) GenerateTF(ctx context.Context, summary string, count int) ItemsResult {
	if count <= 0 {
		return ItemsResult{Items: []QuizItem{}}
	}
	items, err := g.attempt(ctx, PromptTF, PromptInput{Count: count, Text: summary}, ParseTF)
	if err != nil {
		se := newStepError(PromptTF, err)
		g.log.Warn("tf generation failed", "count", count, "kind", string(se.Kind), "error", err.Error())
		return ItemsResult{Items: []QuizItem{}, Attempts: 1, Err: se}
	}
	return ItemsResult{Items: capItems(items, count), Attempts: 1}
}

func (g *Generator) attempt(ctx context.Context, prompt string, in PromptInput, parse func(string) ([]QuizItem, error)) ([]QuizItem, error) {
	req, err := g.prompts.Request(prompt, in)
	if err != nil {
		return nil, err
	}
	raw, err := completeText(ctx, g.llm, g.callTimeout, req)
	if err != nil {
		return nil, err
	}
	items, err := parse(raw)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			g.log.Debug("unparseable model output", "prompt", prompt, "preview", pe.Preview)
		}
		return nil, err
	}
	return items, nil
}

func capItems(items []QuizItem, n int) []QuizItem {
	if len(items) > n {
		return items[:n]
	}
	return items
}
