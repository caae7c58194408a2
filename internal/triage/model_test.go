package triage

import (
	"encoding/json"
	"testing"
)

func TestNormalizeIntent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want IntentLabel
	}{
		{"CLINICAL", IntentClinical},
		{"clinical", IntentClinical},
		{" Billing ", IntentBilling},
		{"admin", IntentAdmin},
		{"OTHER", IntentOther},
		{"spam", IntentOther},
		{"", IntentOther},
	}
	for _, tc := range tests {
		if got := NormalizeIntent(tc.in); got != tc.want {
			t.Errorf("NormalizeIntent(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestLifecycleOpen(t *testing.T) {
	t.Parallel()

	open := []LifecycleState{LifecycleNeedsReply, LifecycleWaiting, LifecycleOverdue}
	for _, s := range open {
		if !s.Open() {
			t.Errorf("%v.Open() = false, want true", s)
		}
	}
	if LifecycleResolved.Open() {
		t.Error("RESOLVED.Open() = true, want false")
	}
}

func TestContextBlob_RoundTripWithExtra(t *testing.T) {
	t.Parallel()

	blob := ContextBlob{
		Subject: "Lab results",
		Sender:  "lab@quest.com",
		Extra:   map[string]any{"thread_id": "t-42"},
	}
	data, err := json.Marshal(blob)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got ContextBlob
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Subject != "Lab results" || got.Sender != "lab@quest.com" {
		t.Errorf("named fields lost: %+v", got)
	}
	if got.Extra["thread_id"] != "t-42" {
		t.Errorf("Extra = %v, want thread_id preserved", got.Extra)
	}
}

func TestContextBlob_NamedFieldsWinOverExtra(t *testing.T) {
	t.Parallel()

	blob := ContextBlob{
		Subject: "real subject",
		Extra:   map[string]any{"subject": "shadowed"},
	}
	data, err := json.Marshal(blob)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["subject"] != "real subject" {
		t.Errorf("subject = %v, want named field to win", m["subject"])
	}
}

func TestContextBlob_UnmarshalScalar(t *testing.T) {
	t.Parallel()

	var blob ContextBlob
	if err := json.Unmarshal([]byte(`"just a note"`), &blob); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if blob.Extra["raw"] != "just a note" {
		t.Errorf("Extra = %v, want raw wrapper", blob.Extra)
	}
}

func TestContextBlob_UnmarshalDoubleEncoded(t *testing.T) {
	t.Parallel()

	inner := `{"subject":"nested","sender":"a@b.com"}`
	data, err := json.Marshal(inner)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var blob ContextBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if blob.Subject != "nested" || blob.Sender != "a@b.com" {
		t.Errorf("double-encoded blob not unwrapped: %+v", blob)
	}
}
