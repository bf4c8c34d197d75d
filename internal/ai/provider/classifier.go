package provider

import "strings"

// Models that must be called through the conversational convention even
// though their identifiers carry no obvious hint.
var conversationalModels = map[string]bool{
	"microsoft/DialoGPT-large":             true,
	"microsoft/DialoGPT-medium":            true,
	"facebook/blenderbot-400M-distill":     true,
	"mistralai/Mistral-7B-Instruct-v0.3":   true,
	"mistralai/Mixtral-8x7B-Instruct-v0.1": true,
	"HuggingFaceH4/zephyr-7b-beta":         true,
	"meta-llama/Llama-3.1-8B-Instruct":     true,
}

// Name fragments that mark a model as chat-oriented.
var conversationalHints = []string{
	"chat",
	"instruct",
	"dialog",
	"conversation",
	"zephyr",
	"assistant",
}

// IsConversational decides which calling convention a model requires:
// a chat-style messages array or a plain text completion. The two are
// mutually exclusive and the choice happens before dispatch; a wrong
// guess surfaces as a provider error and is handled as an ordinary
// attempt failure by the orchestrator.
func IsConversational(modelID string) bool {
	if conversationalModels[modelID] {
		return true
	}

	lower := strings.ToLower(modelID)
	for _, hint := range conversationalHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
