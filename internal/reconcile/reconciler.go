// Package reconcile applies voice provider callbacks to local call records.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"voice-platform/internal/agents"
	"voice-platform/internal/calls"
	"voice-platform/internal/phone"
	"voice-platform/internal/telephony"
	"voice-platform/internal/usage"
	"voice-platform/pkg/metrics"

	"github.com/google/uuid"
)

var (
	ErrUnauthorized = errors.New("reconcile: unauthorized callback")
	ErrPersistence  = errors.New("reconcile: persistence failure")
	ErrUsage        = errors.New("reconcile: usage recording failed")
)

// SignatureVerifier authenticates raw callback bodies. telephony.Verifier satisfies it.
type SignatureVerifier interface {
	Verify(body []byte, header string) error
}

// Classifier maps a call summary to an outcome and never fails.
type Classifier interface {
	Classify(ctx context.Context, summary string) calls.Outcome
}

// Skip reasons reported for acknowledged callbacks that changed nothing.
const (
	SkipMalformed        = "malformed_payload"
	SkipIgnoredType      = "ignored_event_type"
	SkipNoCorrelation    = "no_correlation_id"
	SkipTenantUnresolved = "tenant_unresolved"
)

// Result describes what a callback did. Handled is false for acknowledged no-ops.
type Result struct {
	Handled   bool
	Reason    string
	EventType string

	CallID       string
	Created      bool
	Status       calls.CallStatus
	Outcome      calls.Outcome
	UsageMinutes int
}

type Deps struct {
	Verifier   SignatureVerifier
	Calls      calls.Repository
	Agents     agents.Repository
	Classifier Classifier
	Usage      usage.Recorder
	Logger     *slog.Logger
}

type Reconciler struct {
	verifier   SignatureVerifier
	calls      calls.Repository
	agents     agents.Repository
	classifier Classifier
	usage      usage.Recorder
	log        *slog.Logger

	locators []locator

	clock func() time.Time
	newID func() string
}

func New(d Deps) *Reconciler {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	r := &Reconciler{
		verifier:   d.Verifier,
		calls:      d.Calls,
		agents:     d.Agents,
		classifier: d.Classifier,
		usage:      d.Usage,
		log:        log,
		clock:      time.Now,
		newID:      uuid.NewString,
	}
	r.locators = defaultLocators(d.Calls)
	return r
}

// locator is one correlation strategy. Strategies are tried in order.
type locator struct {
	name string
	key  func(telephony.Event) string
	find func(ctx context.Context, key string) (calls.Call, error)
}

func defaultLocators(repo calls.Repository) []locator {
	return []locator{
		{
			name: "call_sid",
			key:  func(ev telephony.Event) string { return ev.CallSID },
			find: repo.FindByCallSID,
		},
		{
			name: "conversation_id",
			key:  func(ev telephony.Event) string { return ev.ConversationID },
			find: repo.FindByConversationID,
		},
	}
}

// HandleCallback verifies, decodes and applies one provider callback.
//
// Only ErrUnauthorized and persistence or usage failures are returned; every
// other outcome is an acknowledged Result so the provider does not retry.
// Repeated delivery of the same payload converges on the same call state, and
// usage is keyed per call so the ledger charges it once.
func (r *Reconciler) HandleCallback(ctx context.Context, raw []byte, signature string) (Result, error) {
	if err := r.verifier.Verify(raw, signature); err != nil {
		metrics.WebhookEvent("", "rejected")
		return Result{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	ev, err := telephony.DecodeEvent(raw)
	if err != nil {
		r.log.Warn("webhook payload not decodable", "err", err)
		metrics.WebhookEvent("", "ignored")
		return Result{Reason: SkipMalformed}, nil
	}
	if !ev.IsReconcilable() {
		metrics.WebhookEvent(ev.Type, "ignored")
		return Result{Reason: SkipIgnoredType, EventType: ev.Type}, nil
	}

	res, err := r.reconcile(ctx, ev)
	res.EventType = ev.Type
	switch {
	case err != nil:
		metrics.WebhookEvent(ev.Type, "error")
	case res.Handled:
		metrics.WebhookEvent(ev.Type, "reconciled")
	default:
		metrics.WebhookEvent(ev.Type, "ignored")
	}
	return res, err
}

func (r *Reconciler) reconcile(ctx context.Context, ev telephony.Event) (Result, error) {
	log := r.log.With("event_type", ev.Type, "call_sid", ev.CallSID, "conversation_id", ev.ConversationID)

	if ev.CallSID == "" && ev.ConversationID == "" {
		log.Info("webhook without correlation id acknowledged")
		return Result{Reason: SkipNoCorrelation}, nil
	}

	call, found, err := r.locate(ctx, ev)
	if err != nil {
		return Result{}, err
	}

	created := false
	if !found {
		call, err = r.newInboundCall(ctx, ev)
		if errors.Is(err, agents.ErrNotFound) {
			log.Warn("webhook for unknown agent acknowledged", "agent_id", ev.AgentID)
			return Result{Reason: SkipTenantUnresolved}, nil
		}
		if err != nil {
			return Result{}, err
		}
		created = true
		log.Info("inbound call record created", "call_id", call.ID, "tenant_id", call.TenantID)
	}
	log = log.With("call_id", call.ID, "tenant_id", call.TenantID)

	out := calls.OutcomeNeutral
	if ev.Summary != "" && r.classifier != nil {
		out = r.classifier.Classify(ctx, ev.Summary)
		label := string(out)
		if !out.IsCanonical() {
			label = "other"
		}
		metrics.CallOutcome(label)
	}

	now := r.clock().UTC()
	completed := call.ApplyProviderStatus(ev.Status)
	applyEvent(&call, ev, out, now)

	if err := r.calls.Update(ctx, call); err != nil {
		log.Error("call update failed", "err", err)
		return Result{}, fmt.Errorf("%w: update call %s: %w", ErrPersistence, call.ID, err)
	}

	res := Result{
		Handled: true,
		CallID:  call.ID,
		Created: created,
		Status:  call.Status,
		Outcome: call.Outcome,
	}

	if completed && call.DurationSeconds > 0 && r.usage != nil {
		minutes := usage.BillableMinutes(call.DurationSeconds)
		if _, err := r.usage.RecordUsage(ctx, call.TenantID, minutes, usage.CallIdempotencyKey(call.ID)); err != nil {
			log.Error("usage recording failed", "minutes", minutes, "err", err)
			return res, fmt.Errorf("%w: call %s: %w", ErrUsage, call.ID, err)
		}
		res.UsageMinutes = minutes
	}

	log.Info("webhook reconciled", "status", string(call.Status), "outcome", string(call.Outcome), "usage_minutes", res.UsageMinutes)
	return res, nil
}

func (r *Reconciler) locate(ctx context.Context, ev telephony.Event) (calls.Call, bool, error) {
	for _, l := range r.locators {
		key := l.key(ev)
		if key == "" {
			continue
		}
		c, err := l.find(ctx, key)
		if err == nil {
			return c, true, nil
		}
		if !errors.Is(err, calls.ErrNotFound) {
			return calls.Call{}, false, fmt.Errorf("%w: find call by %s: %w", ErrPersistence, l.name, err)
		}
	}
	return calls.Call{}, false, nil
}

// newInboundCall creates the record for a call first seen through a callback.
// The owning tenant comes from the agent; agents.ErrNotFound means none could be resolved.
func (r *Reconciler) newInboundCall(ctx context.Context, ev telephony.Event) (calls.Call, error) {
	agent, err := r.agents.FindByExternalIDAnyTenant(ctx, ev.AgentID)
	if err != nil {
		if errors.Is(err, agents.ErrNotFound) {
			return calls.Call{}, err
		}
		return calls.Call{}, fmt.Errorf("%w: resolve agent: %w", ErrPersistence, err)
	}

	now := r.clock().UTC()
	c := calls.Call{
		ID:              r.newID(),
		TenantID:        agent.TenantID,
		AgentID:         agent.ID,
		ExternalAgentID: agent.ExternalAgentID,
		CallSID:         ev.CallSID,
		ConversationID:  ev.ConversationID,
		Direction:       calls.DirectionInbound,
		PhoneNumber:     ev.ExternalNumber,
		Region:          phone.Region(ev.ExternalNumber),
		Status:          calls.CallStatusInitiated,
		Outcome:         calls.OutcomeNeutral,
		StartedAt:       ev.StartedAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.calls.Create(ctx, c); err != nil {
		return calls.Call{}, fmt.Errorf("%w: create call: %w", ErrPersistence, err)
	}
	return c, nil
}

// applyEvent overwrites the terminal fields from ev. Later callbacks fully
// supersede earlier ones, except that a known provider id is never blanked.
func applyEvent(c *calls.Call, ev telephony.Event, out calls.Outcome, now time.Time) {
	c.DurationSeconds = ev.DurationSeconds
	c.Cost = ev.Cost
	c.Transcript = ev.Transcript
	c.Summary = ev.Summary
	c.HasAudio = ev.HasAudio
	c.Outcome = out

	if ev.ConversationID != "" {
		c.ConversationID = ev.ConversationID
	}
	if ev.CallSID != "" && c.CallSID == "" {
		c.CallSID = ev.CallSID
	}
	if ev.StartedAt != nil {
		started := *ev.StartedAt
		c.StartedAt = &started
	}

	ended := now
	if c.StartedAt != nil && ev.DurationSeconds > 0 {
		ended = c.StartedAt.Add(time.Duration(ev.DurationSeconds) * time.Second)
	}
	c.EndedAt = &ended
	c.UpdatedAt = now
}
