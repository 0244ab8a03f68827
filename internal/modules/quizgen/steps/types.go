package steps

import (
	"context"
	"errors"
	"fmt"
)

const (
	QuestionTypeMCQ = "mcq"
	QuestionTypeTF  = "tf"
)

const (
	AnswerTrue  = "True"
	AnswerFalse = "False"
)

// DefaultConcept is stored when the model leaves the concept blank.
const DefaultConcept = "未分類"

// QuizItem is one validated question. MCQ items carry all four options and an
// answer letter; TF items carry no options and an AnswerTrue/AnswerFalse answer.
type QuizItem struct {
	Type        string            `json:"type"`
	Concept     string            `json:"concept"`
	Question    string            `json:"question"`
	Options     map[string]string `json:"options,omitempty"`
	Answer      string            `json:"answer"`
	Explanation string            `json:"explanation,omitempty"`
}

// CompletionRequest is a single chat completion call.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Completer is the LLM dependency. Implementations return the assistant text.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Transcriber turns an audio file into plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

type ErrorKind string

const (
	KindUpstream ErrorKind = "upstream"
	KindTimeout  ErrorKind = "timeout"
	KindEmpty    ErrorKind = "empty"
	KindParse    ErrorKind = "parse"
)

// StepError records which pipeline step failed and why. Steps return it as a
// value next to their degraded output instead of aborting the run.
type StepError struct {
	Step string
	Kind ErrorKind
	Err  error
}

func (e *StepError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Step, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func newStepError(step string, err error) *StepError {
	kind := KindUpstream
	var pe *ParseError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, ErrEmptyCompletion):
		kind = KindEmpty
	case errors.As(err, &pe):
		kind = KindParse
	}
	return &StepError{Step: step, Kind: kind, Err: err}
}

// ErrEmptyCompletion is returned when the model answers with blank text.
var ErrEmptyCompletion = errors.New("empty completion")
