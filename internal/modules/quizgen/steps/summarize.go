package steps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

const DefaultCallTimeout = 120 * time.Second

// ChunkSummary is the outcome for one chunk. On failure Text holds the
// placeholder for that chunk and Err says why.
type ChunkSummary struct {
	Index int
	Text  string
	Err   *StepError
}

func (c ChunkSummary) Failed() bool { return c.Err != nil }

// SummaryResult is the outcome of the final synthesis. On failure Text holds
// the combine failure marker.
type SummaryResult struct {
	Text string
	Err  *StepError
}

type SummarizerConfig struct {
	CallTimeout time.Duration
	// Concurrency bounds parallel chunk calls; values below 1 mean sequential.
	Concurrency int
}

type Summarizer struct {
	log     *logger.Logger
	llm     Completer
	prompts *Prompts
	cfg     SummarizerConfig
}

func NewSummarizer(log *logger.Logger, llm Completer, prompts *Prompts, cfg SummarizerConfig) *Summarizer {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Summarizer{log: log.With("step", "Summarizer"), llm: llm, prompts: prompts, cfg: cfg}
}

// SummarizeChunk summarizes chunk index (0-based) of total. It never fails the
// caller; errors come back inside the result.
func (s *Summarizer) SummarizeChunk(ctx context.Context, chunk string, index, total int) ChunkSummary {
	out := ChunkSummary{Index: index}
	req, err := s.prompts.Request(PromptChunkSummary, PromptInput{Index: index + 1, Total: total, Text: chunk})
	if err == nil {
		out.Text, err = completeText(ctx, s.llm, s.cfg.CallTimeout, req)
	}
	if err != nil {
		out.Text = s.prompts.ChunkFailure(index)
		out.Err = newStepError(PromptChunkSummary, err)
		s.log.Warn("chunk summary failed", "chunk_index", index, "chunk_total", total, "kind", string(out.Err.Kind), "error", err.Error())
	}
	return out
}

// SummarizeAll runs SummarizeChunk over every chunk with bounded concurrency.
// Results keep chunk order regardless of completion order.
func (s *Summarizer) SummarizeAll(ctx context.Context, chunks []string) []ChunkSummary {
	out := make([]ChunkSummary, len(chunks))
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i := range chunks {
		i := i
		g.Go(func() error {
			out[i] = s.SummarizeChunk(ctx, chunks[i], i, len(chunks))
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Combine merges per-chunk summaries into the final three-section summary.
func (s *Summarizer) Combine(ctx context.Context, summaries []string) SummaryResult {
	parts := make([]string, len(summaries))
	for i, sum := range summaries {
		parts[i] = fmt.Sprintf("段落 %d：%s", i+1, sum)
	}
	req, err := s.prompts.Request(PromptCombine, PromptInput{Total: len(summaries), Text: strings.Join(parts, "\n\n")})
	var text string
	if err == nil {
		text, err = completeText(ctx, s.llm, s.cfg.CallTimeout, req)
	}
	if err != nil {
		se := newStepError(PromptCombine, err)
		s.log.Warn("combine summaries failed", "chunk_total", len(summaries), "kind", string(se.Kind), "error", err.Error())
		return SummaryResult{Text: s.prompts.CombineFailure(), Err: se}
	}
	return SummaryResult{Text: text}
}

func completeText(ctx context.Context, llm Completer, timeout time.Duration, req CompletionRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	text, err := llm.Complete(callCtx, req)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
