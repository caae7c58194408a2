package triage

import (
	"sort"
	"time"
)

// Preview limit bounds for grid reads.
const (
	MinPreviewLimit     = 1
	MaxPreviewLimit     = 50
	DefaultPreviewLimit = 8
)

// Grid is the four-zone preview structure returned to callers. Zones always
// appear in STAT, TODAY, THIS_WEEK, LATER order regardless of counts.
type Grid struct {
	Zones []ZoneBucket `json:"zones"`
}

// ZoneBucket is one zone's aggregate: full counts plus a capped item preview.
type ZoneBucket struct {
	Zone         Zone       `json:"zone"`
	TotalCount   int        `json:"total_count"`
	OverdueCount int        `json:"overdue_count"`
	Items        []GridItem `json:"items"`
}

// GridItem is the display projection of a state vector. The overdue flag is
// unexported: it drives sorting and the bucket count but is dropped from the
// emitted item.
type GridItem struct {
	ID          string         `json:"id"`
	Subject     string         `json:"subject"`
	Snippet     string         `json:"snippet"`
	RiskScore   float64        `json:"risk_score"`
	Lifecycle   LifecycleState `json:"lifecycle_state"`
	DeadlineAt  *time.Time     `json:"deadline_at,omitempty"`
	PatientName string         `json:"patient_name,omitempty"`

	overdue bool
}

// ClampPreviewLimit bounds a caller-supplied limit, substituting the default
// for zero and negative values.
func ClampPreviewLimit(limit int) int {
	if limit <= 0 {
		return DefaultPreviewLimit
	}
	if limit < MinPreviewLimit {
		return MinPreviewLimit
	}
	if limit > MaxPreviewLimit {
		return MaxPreviewLimit
	}
	return limit
}

// BuildGrid aggregates open vectors into the zone preview structure. Pure:
// zone membership and overdue status are recomputed against now, counts cover
// every vector, and each zone's item list is sorted (overdue first, then
// descending risk, then ascending deadline with deadline-less items last) and
// truncated to previewLimit.
func BuildGrid(vectors []*StateVector, previewLimit int, now time.Time) *Grid {
	previewLimit = ClampPreviewLimit(previewLimit)

	buckets := make(map[Zone]*ZoneBucket, len(ZoneOrder))
	for _, z := range ZoneOrder {
		buckets[z] = &ZoneBucket{Zone: z, Items: []GridItem{}}
	}

	for _, v := range vectors {
		zone := VectorZone(v, now)
		overdue := v.Lifecycle == LifecycleOverdue ||
			(v.DeadlineAt != nil && v.DeadlineAt.Before(now))

		b := buckets[zone]
		b.TotalCount++
		if overdue {
			b.OverdueCount++
		}
		b.Items = append(b.Items, gridItem(v, overdue))
	}

	grid := &Grid{Zones: make([]ZoneBucket, 0, len(ZoneOrder))}
	for _, z := range ZoneOrder {
		b := buckets[z]
		sortItems(b.Items)
		if len(b.Items) > previewLimit {
			b.Items = b.Items[:previewLimit]
		}
		grid.Zones = append(grid.Zones, *b)
	}
	return grid
}

func gridItem(v *StateVector, overdue bool) GridItem {
	subject := v.Context.Subject
	if subject == "" {
		subject = v.Summary
	}
	if subject == "" {
		subject = "No subject"
	}
	snippet := v.Context.Snippet
	if snippet == "" {
		// Older blobs carry the message text under a bare "body" key.
		if body, ok := v.Context.Extra["body"].(string); ok {
			snippet = body
		}
	}
	return GridItem{
		ID:          v.ID,
		Subject:     subject,
		Snippet:     snippet,
		RiskScore:   v.RiskScore,
		Lifecycle:   v.Lifecycle,
		DeadlineAt:  v.DeadlineAt,
		PatientName: v.Context.PatientName,
		overdue:     overdue,
	}
}

// sortItems orders a zone's items: overdue first, then descending risk, then
// ascending deadline. Items without a deadline sort last via a maximal
// sentinel.
func sortItems(items []GridItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.overdue != b.overdue {
			return a.overdue
		}
		if a.RiskScore != b.RiskScore {
			return a.RiskScore > b.RiskScore
		}
		return deadlineOrSentinel(a.DeadlineAt).Before(deadlineOrSentinel(b.DeadlineAt))
	})
}

// maxDeadline is the sort sentinel for vectors with no deadline.
var maxDeadline = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

func deadlineOrSentinel(t *time.Time) time.Time {
	if t == nil {
		return maxDeadline
	}
	return *t
}
