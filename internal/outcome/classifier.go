package outcome

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"voice-platform/internal/calls"
	"voice-platform/pkg/metrics"
)

// Completer is the LLM backend. llm.OpenAIClient satisfies it.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)
}

type Classifier struct {
	llm Completer
	log *slog.Logger
}

func NewClassifier(llm Completer, log *slog.Logger) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	return &Classifier{llm: llm, log: log}
}

var systemPrompt = buildSystemPrompt()

func buildSystemPrompt() string {
	labels := make([]string, len(calls.Outcomes))
	for i, o := range calls.Outcomes {
		labels[i] = string(o)
	}
	return "You classify the outcome of a business phone call from its summary. " +
		"Answer with exactly one of these labels and nothing else: " +
		strings.Join(labels, ", ") + "."
}

// Classify returns the outcome for a call summary. It never fails: a blank
// summary or an LLM error yields neutral.
func (c *Classifier) Classify(ctx context.Context, summary string) calls.Outcome {
	summary = strings.TrimSpace(summary)
	if summary == "" || c.llm == nil {
		return calls.OutcomeNeutral
	}

	answer, err := c.llm.Complete(ctx, systemPrompt, fmt.Sprintf("Call summary:\n%s", summary))
	if err != nil {
		metrics.ClassificationError()
		c.log.Warn("outcome classification failed", "err", err)
		return calls.OutcomeNeutral
	}
	out := Normalize(answer)
	if !out.IsCanonical() {
		c.log.Info("outcome answer outside label set", "answer", string(out))
	}
	return out
}
