package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// OracleProvider is any natural-language backend that can answer a single
// prompt with text. The adapter owns parsing and normalization; providers
// only transport.
type OracleProvider interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// oracleSystemPrompt instructs the backend to emit the state-vector JSON.
const oracleSystemPrompt = `You are a clinical inbox triage engine.
Analyze the following email and output a JSON state vector.

Fields:
- intent: CLINICAL, ADMIN, BILLING, or OTHER.
- owner: the role responsible (e.g. 'nurse', 'front_desk', 'billing').
- deadline: ISO timestamp for required response (estimate from urgency), or null.
- risk: 'low', 'medium', 'high', or 'critical'.
- context: brief summary of clinical/business relevance.
- lifecycle: 'new', 'triaged', 'pending_action', or 'resolved'.

Output ONLY valid JSON.`

// riskToScore maps the oracle's risk enumeration to a numeric score.
var riskToScore = map[string]float64{
	"low":      0.2,
	"medium":   0.5,
	"high":     0.8,
	"critical": 0.95,
}

// lifecycleFromHint maps the oracle's lifecycle vocabulary to ours. Unknown
// hints default to NEEDS_REPLY.
var lifecycleFromHint = map[string]LifecycleState{
	"new":            LifecycleNeedsReply,
	"triaged":        LifecycleWaiting,
	"pending_action": LifecycleWaiting,
	"resolved":       LifecycleResolved,
}

// highRiskPhrases trigger the clinical safety floor: a keyword-evident
// emergency is never scored below 0.85 by a noisy oracle response.
var highRiskPhrases = []string{"bleeding", "emergency", "severe pain", "swelling", "chest pain"}

const clinicalRiskFloor = 0.85

// Oracle normalizes an external classification backend into vector drafts.
// It performs no retries; backoff is the caller's responsibility. Any
// unusable response maps to ErrOracleUnavailable so callers always have a
// single fallback condition to test.
type Oracle struct {
	provider OracleProvider
	logger   log.Logger
}

// NewOracle wraps a provider. A nil provider is valid and means the oracle
// is unconfigured: Vectorize then always reports unavailable.
func NewOracle(provider OracleProvider, logger log.Logger) *Oracle {
	if logger == nil {
		logger = log.Nop()
	}
	return &Oracle{provider: provider, logger: logger}
}

// Configured reports whether a backend is wired in.
func (o *Oracle) Configured() bool { return o != nil && o.provider != nil }

// Vectorize asks the backend to classify rawText and normalizes the reply.
// Returns ErrOracleUnavailable when the backend is unconfigured, unreachable,
// or its reply cannot be coerced into a vector draft.
func (o *Oracle) Vectorize(ctx context.Context, rawText string) (*VectorDraft, error) {
	if !o.Configured() || strings.TrimSpace(rawText) == "" {
		return nil, ErrOracleUnavailable
	}

	reply, err := o.provider.Complete(ctx, oracleSystemPrompt, rawText)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(extractJSON(reply)), &payload); err != nil {
		o.logger.Warn(ctx, "oracle reply not parseable", "error", err)
		return nil, fmt.Errorf("%w: parse reply: %w", ErrOracleUnavailable, err)
	}

	draft := coercePayload(payload)
	applyClinicalFloor(draft, rawText)
	return draft, nil
}

// extractJSON strips markdown code fences from an oracle reply.
func extractJSON(text string) string {
	if _, after, ok := strings.Cut(text, "```json"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	if _, after, ok := strings.Cut(text, "```"); ok {
		body, _, _ := strings.Cut(after, "```")
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(text)
}

// coercePayload normalizes a raw oracle object into a draft, enforcing the
// closed intent set, the [0,1] risk range, and the lifecycle table. It also
// accepts the field aliases older prompts produced (intent_label, risk_score,
// deadline_at, lifecycle_state).
func coercePayload(payload map[string]any) *VectorDraft {
	pick := func(keys ...string) any {
		for _, k := range keys {
			if v, ok := payload[k]; ok && v != nil {
				return v
			}
		}
		return nil
	}

	draft := &VectorDraft{
		Intent:    NormalizeIntent(asString(pick("intent", "intent_label"))),
		RiskScore: coerceRisk(pick("risk", "risk_score")),
		Summary:   truncate(asString(pick("context", "summary")), 280),
		OwnerRole: asString(pick("owner", "current_owner_role")),
		Deadline:  parseDeadline(asString(pick("deadline", "deadline_at"))),
		Lifecycle: coerceLifecycle(asString(pick("lifecycle", "lifecycle_state"))),
		Raw:       payload,
	}
	return draft
}

// coerceRisk accepts either the risk enumeration or a bare number and clamps
// the result to [0,1]. Anything unrecognized scores low.
func coerceRisk(v any) float64 {
	switch r := v.(type) {
	case string:
		if score, ok := riskToScore[strings.ToLower(strings.TrimSpace(r))]; ok {
			return score
		}
		return 0.2
	case float64:
		return clamp01(r)
	case json.Number:
		f, err := r.Float64()
		if err != nil {
			return 0.2
		}
		return clamp01(f)
	default:
		return 0.2
	}
}

func coerceLifecycle(hint string) LifecycleState {
	if state, ok := lifecycleFromHint[strings.ToLower(strings.TrimSpace(hint))]; ok {
		return state
	}
	return LifecycleNeedsReply
}

// applyClinicalFloor raises the risk score to the floor when the raw text
// contains a high-risk phrase the oracle under-scored.
func applyClinicalFloor(draft *VectorDraft, rawText string) {
	if draft.Intent != IntentClinical || draft.RiskScore >= clinicalRiskFloor {
		return
	}
	lower := strings.ToLower(rawText)
	for _, phrase := range highRiskPhrases {
		if strings.Contains(lower, phrase) {
			draft.RiskScore = clinicalRiskFloor
			return
		}
	}
}

// parseDeadline is lenient: RFC3339 first, then a few common ISO shapes.
// Unparsable deadlines are treated as absent, never as errors.
func parseDeadline(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func clamp01(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return math.Min(1, math.Max(0, f))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
