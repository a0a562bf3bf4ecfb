// Package outcome classifies finished calls into business outcomes.
package outcome

import (
	"strings"

	"voice-platform/internal/calls"
)

// Rule maps an LLM answer onto a canonical outcome when all of Contains
// and none of Excludes appear in the lowercased answer.
type Rule struct {
	Contains []string
	Excludes []string
	Outcome  calls.Outcome
}

func (r Rule) Match(answer string) bool {
	for _, kw := range r.Contains {
		if !strings.Contains(answer, kw) {
			return false
		}
	}
	for _, kw := range r.Excludes {
		if strings.Contains(answer, kw) {
			return false
		}
	}
	return true
}

// Rules are evaluated in order and the first match wins. The order is part of
// the stored data contract for previously classified calls; do not reorder.
var Rules = []Rule{
	{Contains: []string{"order"}, Outcome: calls.OutcomeOrderPlaced},
	{Contains: []string{"reservation"}, Outcome: calls.OutcomeReservationMade},
	{Contains: []string{"inquiry"}, Outcome: calls.OutcomeInquiryAnswered},
	{Contains: []string{"complaint"}, Outcome: calls.OutcomeComplaintLogged},
	{Contains: []string{"appointment"}, Outcome: calls.OutcomeAppointmentScheduled},
	{Contains: []string{"highly", "interest"}, Outcome: calls.OutcomeHighlyInterested},
	{Contains: []string{"interest"}, Excludes: []string{"not"}, Outcome: calls.OutcomeInterested},
	{Contains: []string{"follow"}, Outcome: calls.OutcomeNeedsFollowUp},
	{Contains: []string{"consider"}, Outcome: calls.OutcomeConsidering},
	{Contains: []string{"not", "interest"}, Outcome: calls.OutcomeNotInterested},
	{Contains: []string{"wrong"}, Outcome: calls.OutcomeWrongNumber},
}

// Normalize maps a raw LLM answer onto the outcome enum. An exact label is
// returned as is; otherwise Rules apply, and with no match the lowercased
// answer is returned unchanged.
func Normalize(answer string) calls.Outcome {
	a := strings.ToLower(strings.TrimSpace(answer))
	a = strings.Trim(a, "\"'`.")
	if a == "" {
		return calls.OutcomeNeutral
	}
	if o := calls.Outcome(a); o.IsCanonical() {
		return o
	}
	for _, r := range Rules {
		if r.Match(a) {
			return r.Outcome
		}
	}
	return calls.Outcome(a)
}
