package triage

import (
	"context"
	"fmt"
	"strings"

	"github.com/linnemanlabs/go-core/log"
)

// Keyword and domain signal lists, checked in order. First match wins.
var (
	statKeywords = []string{
		"critical", "urgent", "stat", "emergency", "abnormal", "positive",
		"elevated", "low", "high", "alert", "immediate", "asap",
	}
	statDomains = []string{
		"labcorp", "quest", "hospital", "er", "emergency", "lab",
		"pathology", "radiology",
	}
	todayKeywords = []string{
		"refill", "prescription", "prior auth", "authorization", "referral",
		"appointment", "callback", "pharmacy", "medication",
	}
	todayDomains = []string{
		"pharmacy", "cvs", "walgreens", "insurance", "medicaid", "medicare",
		"aetna", "cigna", "united", "bcbs",
	}
	thisWeekKeywords = []string{
		"billing", "invoice", "payment", "claim", "denial", "records request",
		"compliance", "audit",
	}
	laterKeywords = []string{
		"newsletter", "cme", "conference", "webinar", "marketing",
		"promotion", "sale", "discount", "survey",
	}
)

// Heuristic intent buckets for the ingestion fallback path.
var (
	clinicalHeuristics = []string{
		"pain", "bleeding", "hurt", "tooth", "fever", "infection",
		"swelling", "urgent", "emergency", "critical",
	}
	billingHeuristics = []string{"billing", "invoice", "payment", "claim", "copay", "balance"}
	adminHeuristics   = []string{"appointment", "schedule", "refill", "referral", "prior auth"}
)

// OverrideSource supplies learned sender→zone overrides. Overrides take
// precedence over every keyword rule.
type OverrideSource interface {
	GetOverride(ctx context.Context, senderKey string) (Zone, bool, error)
}

// SenderKey normalizes a sender address into the override lookup key.
func SenderKey(sender string) string {
	return "sender:" + strings.ToLower(strings.TrimSpace(sender))
}

// Lexical is the rule-based classifier. It is always available and performs
// no I/O beyond the single override lookup.
type Lexical struct {
	overrides OverrideSource
	logger    log.Logger
}

// NewLexical creates the rule-based classifier. overrides may be nil, in
// which case learned corrections are skipped.
func NewLexical(overrides OverrideSource, logger log.Logger) *Lexical {
	if logger == nil {
		logger = log.Nop()
	}
	return &Lexical{overrides: overrides, logger: logger}
}

// Classify assigns a zone from sender and text signals. Rules are strictly
// ordered: learned override, STAT keywords, STAT domains, TODAY keywords,
// TODAY domains, THIS_WEEK keywords, LATER keywords, then the safe default.
func (c *Lexical) Classify(ctx context.Context, sender, senderDomain, subject, snippet string) Classification {
	if c.overrides != nil && sender != "" {
		zone, ok, err := c.overrides.GetOverride(ctx, SenderKey(sender))
		if err != nil {
			c.logger.Error(ctx, err, "override lookup failed", "sender", sender)
		} else if ok {
			return Classification{
				Zone:              zone,
				Confidence:        0.95,
				Reason:            "Learned pattern from previous correction",
				Summary:           fmt.Sprintf("Email from %s", sender),
				RecommendedAction: "Handle per learned priority",
				ActionType:        "review",
			}
		}
	}

	text := subject + " " + snippet

	if kw, ok := matchKeyword(text, statKeywords); ok {
		return Classification{
			Zone:              ZoneStat,
			Confidence:        0.92,
			Reason:            fmt.Sprintf("Urgent keyword: '%s'", kw),
			Summary:           fmt.Sprintf("URGENT: Contains '%s'", kw),
			RecommendedAction: "Review immediately",
			ActionType:        "review",
		}
	}
	if d, ok := matchKeyword(senderDomain, statDomains); ok {
		return Classification{
			Zone:              ZoneStat,
			Confidence:        0.88,
			Reason:            fmt.Sprintf("High-priority domain: '%s'", d),
			Summary:           fmt.Sprintf("From %s", d),
			RecommendedAction: "Review immediately",
			ActionType:        "review",
		}
	}
	if kw, ok := matchKeyword(text, todayKeywords); ok {
		return Classification{
			Zone:              ZoneToday,
			Confidence:        0.85,
			Reason:            fmt.Sprintf("Same-day keyword: '%s'", kw),
			Summary:           fmt.Sprintf("Action needed: %s", kw),
			RecommendedAction: fmt.Sprintf("Process %s today", kw),
			ActionType:        "reply",
		}
	}
	if d, ok := matchKeyword(senderDomain, todayDomains); ok {
		return Classification{
			Zone:              ZoneToday,
			Confidence:        0.82,
			Reason:            fmt.Sprintf("Action-required sender: '%s'", d),
			Summary:           fmt.Sprintf("From %s", d),
			RecommendedAction: "Respond today",
			ActionType:        "reply",
		}
	}
	if kw, ok := matchKeyword(text, thisWeekKeywords); ok {
		return Classification{
			Zone:              ZoneThisWeek,
			Confidence:        0.80,
			Reason:            fmt.Sprintf("Administrative: '%s'", kw),
			Summary:           fmt.Sprintf("Administrative: %s", kw),
			RecommendedAction: fmt.Sprintf("Handle %s this week", kw),
			ActionType:        "delegate",
		}
	}
	if kw, ok := matchKeyword(text, laterKeywords); ok {
		return Classification{
			Zone:              ZoneLater,
			Confidence:        0.90,
			Reason:            fmt.Sprintf("Low-priority: '%s'", kw),
			Summary:           fmt.Sprintf("FYI: %s", kw),
			RecommendedAction: "Archive",
			ActionType:        "archive",
		}
	}

	return Classification{
		Zone:              ZoneThisWeek,
		Confidence:        0.60,
		Reason:            "No strong signals",
		Summary:           fmt.Sprintf("Email from %s", sender),
		RecommendedAction: "Review manually",
		ActionType:        "review",
	}
}

// HeuristicDraft buckets raw text into an intent and risk score. Used when
// the oracle is unavailable; the buckets are checked clinical, billing,
// admin, then the low-risk default.
func (c *Lexical) HeuristicDraft(rawText string) *VectorDraft {
	lower := strings.ToLower(rawText)

	var matches []string
	for _, kw := range clinicalHeuristics {
		if strings.Contains(lower, kw) {
			matches = append(matches, kw)
		}
	}
	if len(matches) > 0 {
		return &VectorDraft{
			Intent:    IntentClinical,
			RiskScore: 0.9,
			Summary:   "Likely clinical issue requiring attention.",
			Lifecycle: LifecycleNeedsReply,
			Heuristic: true,
			Matches:   matches,
		}
	}
	for _, kw := range billingHeuristics {
		if strings.Contains(lower, kw) {
			return &VectorDraft{
				Intent:    IntentBilling,
				RiskScore: 0.3,
				Summary:   "Likely billing-related request.",
				Lifecycle: LifecycleNeedsReply,
				Heuristic: true,
				Matches:   []string{kw},
			}
		}
	}
	for _, kw := range adminHeuristics {
		if strings.Contains(lower, kw) {
			return &VectorDraft{
				Intent:    IntentAdmin,
				RiskScore: 0.4,
				Summary:   "Likely administrative request.",
				Lifecycle: LifecycleNeedsReply,
				Heuristic: true,
				Matches:   []string{kw},
			}
		}
	}
	return &VectorDraft{
		Intent:    IntentOther,
		RiskScore: 0.2,
		Summary:   "Unclear intent.",
		Lifecycle: LifecycleNeedsReply,
		Heuristic: true,
		Matches:   []string{},
	}
}

// matchKeyword returns the first list entry contained in text,
// case-insensitively.
func matchKeyword(text string, list []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, kw := range list {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return kw, true
		}
	}
	return "", false
}
