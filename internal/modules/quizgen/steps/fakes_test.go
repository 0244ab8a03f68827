package steps

import (
	"context"
	"sync"
	"testing"

	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

type reply struct {
	text string
	err  error
}

// scriptedLLM answers calls in order; respond, when set, overrides the script.
type scriptedLLM struct {
	mu      sync.Mutex
	script  []reply
	respond func(req CompletionRequest) (string, error)
	calls   []CompletionRequest
}

func (s *scriptedLLM) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	n := len(s.calls)
	respond := s.respond
	s.mu.Unlock()
	if respond != nil {
		return respond(req)
	}
	if n > len(s.script) {
		return "", context.DeadlineExceeded
	}
	r := s.script[n-1]
	return r.text, r.err
}

func (s *scriptedLLM) Calls() []CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CompletionRequest(nil), s.calls...)
}

func testPrompts(t *testing.T) *Prompts {
	t.Helper()
	p, err := LoadPrompts(logger.Nop())
	if err != nil {
		t.Fatalf("LoadPrompts: %v", err)
	}
	return p
}
