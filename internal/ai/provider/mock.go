package provider

import (
	"fmt"
	"strings"

	"github.com/Lideeyah/DevAssist-sub000/internal/ai/prompt"
)

// Mock is the terminal generator in the fallback chain. It never fails
// and never returns an empty string, which is what guarantees every
// admitted generation request produces some text.
type Mock struct{}

// NewMock returns the deterministic terminal generator.
func NewMock() *Mock {
	return &Mock{}
}

// Generate returns fixed text keyed by mode with a shallow sniff of the
// prompt so the answer at least names what was asked for.
func (m *Mock) Generate(userPrompt, mode string) string {
	subject := truncate(strings.TrimSpace(userPrompt), 80)
	if subject == "" {
		subject = "your request"
	}

	if mode == prompt.ModeExplain {
		return fmt.Sprintf(`I could not reach a language model to explain %q right now.

As a general approach: read the code top to bottom once, then trace a
single input through it. Most behavior questions resolve by following
one concrete value through every transformation it goes through.

Please retry in a moment for a full explanation.`, subject)
	}

	return fmt.Sprintf(`// Placeholder response for: %s
// All generation backends are currently unavailable. This stub keeps
// your workflow moving; retry shortly for a real implementation.

function placeholder() {
  throw new Error('Not implemented yet');
}`, subject)
}
