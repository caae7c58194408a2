package triage

import "testing"

func TestRoute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		intent     IntentLabel
		risk       float64
		wantOwner  string
		wantReason string
	}{
		{"high-risk clinical", IntentClinical, 0.9, RoleLeadDoctor, "High-risk clinical"},
		{"clinical at threshold", IntentClinical, 0.8, RoleLeadDoctor, "High-risk clinical"},
		{"clinical below threshold", IntentClinical, 0.79, RoleNurse, "Clinical, non-urgent"},
		{"billing", IntentBilling, 0.3, RoleBilling, "Billing-related"},
		{"billing high risk still billing", IntentBilling, 0.95, RoleBilling, "Billing-related"},
		{"admin", IntentAdmin, 0.4, RoleFrontDesk, "Administrative"},
		{"other", IntentOther, 0.2, RoleFrontDesk, "Default routing"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Route(tc.intent, tc.risk)
			if got.OwnerRole != tc.wantOwner {
				t.Errorf("OwnerRole = %q, want %q", got.OwnerRole, tc.wantOwner)
			}
			if got.Reason != tc.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tc.wantReason)
			}
		})
	}
}

func TestRoute_Idempotent(t *testing.T) {
	t.Parallel()

	first := Route(IntentClinical, 0.85)
	for i := 0; i < 10; i++ {
		if got := Route(IntentClinical, 0.85); got != first {
			t.Fatalf("Route not deterministic: %+v vs %+v", got, first)
		}
	}
}
