package triage

import (
	"encoding/json"
	"strings"
	"time"
)

// IntentLabel is the closed set of message intents. Unrecognized values
// coerce to IntentOther.
type IntentLabel string

const (
	IntentClinical IntentLabel = "CLINICAL"
	IntentAdmin    IntentLabel = "ADMIN"
	IntentBilling  IntentLabel = "BILLING"
	IntentOther    IntentLabel = "OTHER"
)

// NormalizeIntent uppercases a raw intent and coerces anything outside the
// closed set to OTHER.
func NormalizeIntent(raw string) IntentLabel {
	switch IntentLabel(strings.ToUpper(strings.TrimSpace(raw))) {
	case IntentClinical:
		return IntentClinical
	case IntentAdmin:
		return IntentAdmin
	case IntentBilling:
		return IntentBilling
	default:
		return IntentOther
	}
}

// LifecycleState tracks where a state vector is in its lifecycle.
type LifecycleState string

const (
	// LifecycleNeedsReply means the message awaits a response.
	LifecycleNeedsReply LifecycleState = "NEEDS_REPLY"

	// LifecycleWaiting means the message has been triaged or is pending action.
	LifecycleWaiting LifecycleState = "WAITING"

	// LifecycleOverdue is reachable only through manual escalation,
	// never at creation.
	LifecycleOverdue LifecycleState = "OVERDUE"

	// LifecycleResolved means no further action is needed. Resolved vectors
	// are excluded from the grid.
	LifecycleResolved LifecycleState = "RESOLVED"
)

// Open reports whether the state still surfaces in the triage grid.
func (s LifecycleState) Open() bool {
	return s == LifecycleNeedsReply || s == LifecycleWaiting || s == LifecycleOverdue
}

// Zone is a priority bucket. Zones are computed at read time from risk and
// deadline and never persisted, so they cannot go stale as time passes.
type Zone string

const (
	ZoneStat     Zone = "STAT"
	ZoneToday    Zone = "TODAY"
	ZoneThisWeek Zone = "THIS_WEEK"
	ZoneLater    Zone = "LATER"
)

// ZoneOrder is the fixed display order of the grid, independent of counts.
var ZoneOrder = [4]Zone{ZoneStat, ZoneToday, ZoneThisWeek, ZoneLater}

// ValidZone reports whether z is one of the four priority zones.
func ValidZone(z Zone) bool {
	switch z {
	case ZoneStat, ZoneToday, ZoneThisWeek, ZoneLater:
		return true
	}
	return false
}

// StateVector is the durable record capturing a message's classification,
// risk, owner, and lifecycle. One per ingested message; immutable after
// creation except through escalation.
type StateVector struct {
	ID              string         `json:"id"`
	SourceMessageID string         `json:"source_message_id"`
	OriginID        string         `json:"origin_id"`
	Intent          IntentLabel    `json:"intent_label"`
	RiskScore       float64        `json:"risk_score"`
	Context         ContextBlob    `json:"context_blob"`
	Summary         string         `json:"summary,omitempty"`
	OwnerRole       string         `json:"owner_role,omitempty"`
	DeadlineAt      *time.Time     `json:"deadline_at,omitempty"`
	Lifecycle       LifecycleState `json:"lifecycle_state"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// MessageEvent is an append-only audit record attached to a state vector.
// Events are never mutated or deleted.
type MessageEvent struct {
	ID          string    `json:"id"`
	VectorID    string    `json:"vector_id"`
	EventType   string    `json:"event_type"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Event types recorded on state vectors.
const (
	EventEscalated = "ESCALATED"
	EventCorrected = "CORRECTED"
)

// Classification is the outcome of the lexical classifier: a zone plus the
// deterministic explanation and suggested handling for the matched rule.
type Classification struct {
	Zone              Zone    `json:"zone"`
	Confidence        float64 `json:"confidence"`
	Reason            string  `json:"reason"`
	Summary           string  `json:"summary,omitempty"`
	RecommendedAction string  `json:"recommended_action,omitempty"`
	ActionType        string  `json:"action_type,omitempty"`
}

// VectorDraft is a normalized classification produced by the oracle adapter
// or the heuristic fallback, before routing and persistence.
type VectorDraft struct {
	Intent    IntentLabel
	RiskScore float64
	Summary   string
	OwnerRole string
	Deadline  *time.Time
	Lifecycle LifecycleState
	Raw       map[string]any // raw oracle payload, echoed into the context blob
	Heuristic bool
	Matches   []string // keywords that drove the heuristic bucket

	// classification is the zone-level lexical result recorded when the
	// fallback path produced this draft.
	classification *Classification
}

// ContextBlob is the structured side channel stored with every vector. The
// named fields carry the subject/snippet/sender echo and oracle output; Extra
// holds provider-specific keys we don't model. It always marshals to a JSON
// object and unmarshals from anything (opaque payloads are wrapped under
// "raw"), so readers can rely on map semantics.
type ContextBlob struct {
	Subject        string          `json:"subject,omitempty"`
	Snippet        string          `json:"snippet,omitempty"`
	Sender         string          `json:"sender,omitempty"`
	PatientName    string          `json:"patient_name,omitempty"`
	Vector         map[string]any  `json:"vector,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
	Heuristic      bool            `json:"heuristic,omitempty"`
	Matches        []string        `json:"matches,omitempty"`

	Extra map[string]any `json:"-"`
}

// knownBlobKeys are the fields ContextBlob models directly; everything else
// round-trips through Extra.
var knownBlobKeys = map[string]bool{
	"subject": true, "snippet": true, "sender": true, "patient_name": true,
	"vector": true, "classification": true, "heuristic": true, "matches": true,
}

type contextBlobAlias ContextBlob

// MarshalJSON merges Extra into the object form so the stored blob is always
// a single flat JSON object. Named fields win over Extra on key collisions.
func (b ContextBlob) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(contextBlobAlias(b))
	if err != nil {
		return nil, err
	}
	if len(b.Extra) == 0 {
		return base, nil
	}
	merged := make(map[string]any, len(b.Extra)+8)
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range b.Extra {
		if _, taken := merged[k]; !taken {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON accepts any JSON value. Objects populate the named fields and
// spill unknown keys into Extra; bare strings and other scalars are wrapped
// under "raw" rather than rejected.
func (b *ContextBlob) UnmarshalJSON(data []byte) error {
	var alias contextBlobAlias
	if err := json.Unmarshal(data, &alias); err == nil {
		*b = ContextBlob(alias)
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err == nil {
			for k := range raw {
				if knownBlobKeys[k] {
					delete(raw, k)
				}
			}
			if len(raw) > 0 {
				b.Extra = raw
			}
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		// Stored blobs are sometimes double-encoded JSON objects.
		if len(s) > 0 && s[0] == '{' {
			var nested ContextBlob
			if err := json.Unmarshal([]byte(s), &nested); err == nil {
				*b = nested
				return nil
			}
		}
		*b = ContextBlob{Extra: map[string]any{"raw": s}}
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = ContextBlob{Extra: map[string]any{"raw": v}}
	return nil
}
