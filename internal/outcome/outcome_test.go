package outcome

import (
	"context"
	"errors"
	"sync"
	"testing"

	"voice-platform/internal/calls"

	"github.com/stretchr/testify/assert"
)

type fakeLLM struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []string
}

func (f *fakeLLM) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.answer, f.err
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func TestClassify_BlankSkipsLLM(t *testing.T) {
	llm := &fakeLLM{answer: "interested"}
	c := NewClassifier(llm, nil)

	assert.Equal(t, calls.OutcomeNeutral, c.Classify(context.Background(), ""))
	assert.Equal(t, calls.OutcomeNeutral, c.Classify(context.Background(), "   "))
	assert.Equal(t, 0, llm.callCount())
}

func TestClassify_WrongNumberSummary(t *testing.T) {
	llm := &fakeLLM{answer: "wrong_number"}
	c := NewClassifier(llm, nil)

	got := c.Classify(context.Background(), "The customer was very interested but it turned out to be a wrong number")
	assert.Equal(t, calls.OutcomeWrongNumber, got)
	assert.Equal(t, 1, llm.callCount())
}

func TestClassify_LLMErrorYieldsNeutral(t *testing.T) {
	c := NewClassifier(&fakeLLM{err: errors.New("timeout")}, nil)
	assert.Equal(t, calls.OutcomeNeutral, c.Classify(context.Background(), "Caller placed an order"))
}

func TestClassify_NormalizesLooseAnswer(t *testing.T) {
	c := NewClassifier(&fakeLLM{answer: "  The caller made a Reservation. "}, nil)
	assert.Equal(t, calls.OutcomeReservationMade, c.Classify(context.Background(), "table for two"))
}

func TestNormalize_Precedence(t *testing.T) {
	cases := map[string]calls.Outcome{
		"order_placed":                           calls.OutcomeOrderPlaced,
		"\"no_answer\"":                          calls.OutcomeNoAnswer,
		"NEUTRAL":                                calls.OutcomeNeutral,
		"they placed an order and a reservation": calls.OutcomeOrderPlaced,
		"reservation request":                    calls.OutcomeReservationMade,
		"general inquiry":                        calls.OutcomeInquiryAnswered,
		"customer complaint":                     calls.OutcomeComplaintLogged,
		"booked an appointment":                  calls.OutcomeAppointmentScheduled,
		"highly interested lead":                 calls.OutcomeHighlyInterested,
		"interested":                             calls.OutcomeInterested,
		"needs a follow up call":                 calls.OutcomeNeedsFollowUp,
		"still considering":                      calls.OutcomeConsidering,
		"not interested":                         calls.OutcomeNotInterested,
		"wrong person":                           calls.OutcomeWrongNumber,
		// "interest" is checked before "wrong".
		"interested but wrong number": calls.OutcomeInterested,
		"":                            calls.OutcomeNeutral,
		"Voicemail":                   calls.Outcome("voicemail"),
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "answer %q", in)
	}
}

func TestRules_CoverEveryKeywordOutcomeOnce(t *testing.T) {
	seen := map[calls.Outcome]bool{}
	for _, r := range Rules {
		assert.False(t, seen[r.Outcome], "duplicate rule for %s", r.Outcome)
		seen[r.Outcome] = true
		assert.True(t, r.Outcome.IsCanonical())
	}
	assert.Len(t, Rules, 11)
}

func TestSystemPromptListsAllLabels(t *testing.T) {
	for _, o := range calls.Outcomes {
		assert.Contains(t, systemPrompt, string(o))
	}
}
