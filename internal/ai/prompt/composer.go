// Package prompt builds the final prompt text sent to the inference
// provider. Everything here is pure string assembly: no I/O, fully
// deterministic for identical inputs. Size policy stays with the
// caller; the project context is bounded before it reaches Compose.
package prompt

import "strings"

// Mode selects the instructional preamble and generation parameters.
const (
	ModeGenerate = "generate"
	ModeExplain  = "explain"
)

// ContextFile is one project file injected into the prompt context.
type ContextFile struct {
	Filename string `json:"filename"`
	Content  string `json:"-"`
	Size     int    `json:"size"`
}

const generatePreamble = `You are DevAssist, an expert software engineer embedded in a web IDE.
Generate clean, working code for the user's request. Prefer small, composable
functions and include brief comments only where intent is not obvious.
Respond with code first; add explanation only if the user asked for it.`

const explainPreamble = `You are DevAssist, an expert software engineer embedded in a web IDE.
Explain the code or concept the user asks about. Be precise and concrete:
name the relevant functions and lines, describe data flow, and call out
edge cases or bugs you notice.`

const genericPreamble = `You are DevAssist, an expert software engineer embedded in a web IDE.
Help the user with their programming request.`

// SystemPreamble returns the fixed instructional preamble for a mode.
// Unknown modes get the generic preamble.
func SystemPreamble(mode string) string {
	switch mode {
	case ModeGenerate:
		return generatePreamble
	case ModeExplain:
		return explainPreamble
	default:
		return genericPreamble
	}
}

// FileContext wraps each file in a delimited block. An empty list
// produces an explicit marker instead of silence so the model is told
// no project context exists.
func FileContext(files []ContextFile) string {
	if len(files) == 0 {
		return "No project files provided.\n"
	}

	var b strings.Builder
	b.WriteString("Project files:\n")
	for _, f := range files {
		b.WriteString("--- FILE: ")
		b.WriteString(f.Filename)
		b.WriteString(" ---\n")
		b.WriteString(f.Content)
		if !strings.HasSuffix(f.Content, "\n") {
			b.WriteByte('\n')
		}
		b.WriteString("--- END FILE ---\n")
	}
	return b.String()
}

// Compose assembles the full prompt: preamble, file context, then the
// user's request with an assistant cue for completion-style models.
func Compose(userPrompt, mode string, files []ContextFile) string {
	var b strings.Builder
	b.WriteString(SystemPreamble(mode))
	b.WriteString("\n\n")
	b.WriteString(FileContext(files))
	b.WriteString("\nUser: ")
	b.WriteString(userPrompt)
	b.WriteString("\n\nAssistant:")
	return b.String()
}
