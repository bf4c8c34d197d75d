package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/Lideeyah/DevAssist-sub000/internal/ai/prompt"
	"github.com/Lideeyah/DevAssist-sub000/internal/config"
	"github.com/Lideeyah/DevAssist-sub000/internal/metrics"
)

// Strategy labels record which tier of the chain produced a response.
const (
	StrategyPrimary   = "primary"
	StrategyFallback  = "fallback"
	StrategyHeuristic = "local-heuristic"
	StrategyMock      = "mock"
)

const (
	temperatureGenerate = 0.7
	temperatureExplain  = 0.3
	topP                = 0.9
)

// Request carries everything the chain needs to produce text. Composed
// is the full prompt for completion models; chat models get the system
// preamble and user content as separate turns.
type Request struct {
	Composed   string
	UserPrompt string
	Context    string
	Mode       string
}

// Result is the outcome of a generation attempt chain.
type Result struct {
	Text     string
	Strategy string
	Model    string
}

// Orchestrator walks the degradation chain: primary remote model, then
// each fallback remote model in order, then the local heuristic, then
// the mock. The chain cannot come back empty.
type Orchestrator struct {
	remote         RemoteClient
	heuristic      *Heuristic
	mock           *Mock
	primaryModel   string
	fallbackModels []string
	attemptTimeout time.Duration
	maxTokens      int
	logger         *slog.Logger
}

// NewOrchestrator builds the chain from config. A credential that fails
// the shape check disables the remote tiers entirely rather than burning
// an attempt timeout per model on requests that cannot authenticate.
func NewOrchestrator(cfg config.InferenceConfig, client RemoteClient, logger *slog.Logger) *Orchestrator {
	if !CredentialOK(cfg.APIToken) {
		logger.Warn("inference credential missing or malformed, remote models disabled")
		client = nil
	}
	return &Orchestrator{
		remote:         client,
		heuristic:      NewHeuristic(),
		mock:           NewMock(),
		primaryModel:   cfg.PrimaryModel,
		fallbackModels: cfg.FallbackModels,
		attemptTimeout: cfg.AttemptTimeout,
		maxTokens:      cfg.MaxOutputTokens,
		logger:         logger,
	}
}

// Generate runs the chain and returns the first non-empty result. Each
// remote attempt gets its own timeout; a failure at any tier moves to
// the next without surfacing to the caller.
func (o *Orchestrator) Generate(ctx context.Context, req Request) *Result {
	if o.remote != nil {
		if text, ok := o.attempt(ctx, o.primaryModel, req); ok {
			return &Result{Text: text, Strategy: StrategyPrimary, Model: o.primaryModel}
		}
		for _, model := range o.fallbackModels {
			if text, ok := o.attempt(ctx, model, req); ok {
				return &Result{Text: text, Strategy: StrategyFallback, Model: model}
			}
		}
	}

	if text := o.heuristic.Generate(ctx, req.UserPrompt, req.Mode); text != "" {
		return &Result{Text: text, Strategy: StrategyHeuristic, Model: ""}
	}

	return &Result{Text: o.mock.Generate(req.UserPrompt, req.Mode), Strategy: StrategyMock, Model: ""}
}

func (o *Orchestrator) attempt(ctx context.Context, model string, req Request) (string, bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	defer cancel()

	params := GenParams{
		MaxTokens:   o.maxTokens,
		Temperature: temperatureFor(req.Mode),
		TopP:        topP,
	}

	var text string
	var err error
	if IsConversational(model) {
		messages := []Message{
			{Role: "system", Content: prompt.SystemPreamble(req.Mode)},
			{Role: "user", Content: req.Context + "\n" + req.UserPrompt},
		}
		text, err = o.remote.Chat(attemptCtx, model, messages, params)
	} else {
		text, err = o.remote.Complete(attemptCtx, model, req.Composed, params)
	}

	if err != nil {
		metrics.ProviderAttemptsTotal.WithLabelValues(model, "failure").Inc()
		o.logger.Warn("inference attempt failed",
			slog.String("model", model),
			slog.String("error", err.Error()))
		return "", false
	}

	metrics.ProviderAttemptsTotal.WithLabelValues(model, "success").Inc()
	return text, true
}

func temperatureFor(mode string) float64 {
	if mode == prompt.ModeExplain {
		return temperatureExplain
	}
	return temperatureGenerate
}
