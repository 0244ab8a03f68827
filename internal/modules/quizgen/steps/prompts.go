package steps

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

// PromptsEnv points at a YAML file that replaces the embedded prompt set.
const PromptsEnv = "QUIZGEN_PROMPTS_YAML"

//go:embed prompts.yaml
var promptsFS embed.FS

const (
	PromptChunkSummary = "chunk_summary"
	PromptCombine      = "combine"
	PromptMCQ          = "mcq"
	PromptMCQStrict    = "mcq_strict"
	PromptTF           = "tf"
)

var requiredPrompts = []string{PromptChunkSummary, PromptCombine, PromptMCQ, PromptMCQStrict, PromptTF}

// PromptInput is the data every template is rendered with.
type PromptInput struct {
	Index int
	Total int
	Count int
	Text  string
}

type yamlPromptSet struct {
	Version      int                   `yaml:"version"`
	Prompts      map[string]yamlPrompt `yaml:"prompts"`
	Placeholders struct {
		ChunkFailure   string `yaml:"chunk_failure"`
		CombineFailure string `yaml:"combine_failure"`
	} `yaml:"placeholders"`
}

type yamlPrompt struct {
	System      string   `yaml:"system"`
	User        string   `yaml:"user"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
}

type promptTemplate struct {
	system      *template.Template
	user        *template.Template
	temperature float64
	maxTokens   int
}

// Prompts is the compiled prompt set.
type Prompts struct {
	templates      map[string]promptTemplate
	chunkFailure   *template.Template
	combineFailure string
}

var (
	promptsOnce  sync.Once
	promptsCache *Prompts
	promptsErr   error
)

// LoadPrompts returns the process-wide prompt set. An override file that
// fails to load or validate is logged and the embedded set is used instead.
func LoadPrompts(log *logger.Logger) (*Prompts, error) {
	promptsOnce.Do(func() {
		if path := strings.TrimSpace(os.Getenv(PromptsEnv)); path != "" {
			data, err := os.ReadFile(path)
			if err == nil {
				promptsCache, err = ParsePrompts(data)
			}
			if err == nil {
				return
			}
			if log != nil {
				log.Warn("quizgen: prompt override invalid; using embedded prompts", "path", path, "error", err)
			}
		}
		data, err := promptsFS.ReadFile("prompts.yaml")
		if err != nil {
			promptsErr = err
			return
		}
		promptsCache, promptsErr = ParsePrompts(data)
	})
	return promptsCache, promptsErr
}

// ParsePrompts compiles a YAML prompt document.
func ParsePrompts(data []byte) (*Prompts, error) {
	var doc yamlPromptSet
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Version != 1 {
		return nil, fmt.Errorf("unsupported prompt set version %d", doc.Version)
	}
	out := &Prompts{templates: make(map[string]promptTemplate, len(requiredPrompts))}
	for _, name := range requiredPrompts {
		p, ok := doc.Prompts[name]
		if !ok {
			return nil, fmt.Errorf("missing prompt %q", name)
		}
		if strings.TrimSpace(p.User) == "" {
			return nil, fmt.Errorf("prompt %q has no user template", name)
		}
		if p.Temperature == nil {
			return nil, fmt.Errorf("prompt %q has no temperature", name)
		}
		sys, err := template.New(name + ".system").Option("missingkey=zero").Parse(p.System)
		if err != nil {
			return nil, fmt.Errorf("%s system template parse: %w", name, err)
		}
		user, err := template.New(name + ".user").Option("missingkey=zero").Parse(p.User)
		if err != nil {
			return nil, fmt.Errorf("%s user template parse: %w", name, err)
		}
		out.templates[name] = promptTemplate{system: sys, user: user, temperature: *p.Temperature, maxTokens: p.MaxTokens}
	}

	if strings.TrimSpace(doc.Placeholders.ChunkFailure) == "" || strings.TrimSpace(doc.Placeholders.CombineFailure) == "" {
		return nil, errors.New("failure placeholders are required")
	}
	cf, err := template.New("chunk_failure").Parse(doc.Placeholders.ChunkFailure)
	if err != nil {
		return nil, fmt.Errorf("chunk_failure template parse: %w", err)
	}
	out.chunkFailure = cf
	out.combineFailure = strings.TrimSpace(doc.Placeholders.CombineFailure)
	return out, nil
}

// Request renders the named prompt into a completion request.
func (p *Prompts) Request(name string, in PromptInput) (CompletionRequest, error) {
	t, ok := p.templates[name]
	if !ok {
		return CompletionRequest{}, fmt.Errorf("unknown prompt %q", name)
	}
	sys, err := render(t.system, in)
	if err != nil {
		return CompletionRequest{}, err
	}
	user, err := render(t.user, in)
	if err != nil {
		return CompletionRequest{}, err
	}
	return CompletionRequest{System: sys, User: user, Temperature: t.temperature, MaxTokens: t.maxTokens}, nil
}

// ChunkFailure is the placeholder stored for chunk index (0-based) whose summary failed.
func (p *Prompts) ChunkFailure(index int) string {
	s, err := render(p.chunkFailure, PromptInput{Index: index + 1})
	if err != nil {
		return fmt.Sprintf("第 %d 段摘要失敗", index+1)
	}
	return s
}

// CombineFailure is the marker persisted when the final synthesis fails.
func (p *Prompts) CombineFailure() string { return p.combineFailure }

func render(t *template.Template, in PromptInput) (string, error) {
	var b bytes.Buffer
	if err := t.Execute(&b, in); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(b.String()), nil
}
