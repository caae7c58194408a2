package triage

// Owner roles assigned by the router.
const (
	RoleLeadDoctor = "lead_doctor"
	RoleNurse      = "nurse"
	RoleBilling    = "billing"
	RoleFrontDesk  = "front_desk"
)

// RouteDecision is the owner role and reason chosen for a vector.
type RouteDecision struct {
	OwnerRole string `json:"owner_role"`
	Reason    string `json:"reason"`
}

// Route maps a vector to a responsible owner role. Pure and deterministic;
// rules apply in order, with the risk check dominating the plain CLINICAL
// check.
func Route(intent IntentLabel, riskScore float64) RouteDecision {
	switch {
	case intent == IntentClinical && riskScore >= statRiskThreshold:
		return RouteDecision{OwnerRole: RoleLeadDoctor, Reason: "High-risk clinical"}
	case intent == IntentClinical:
		return RouteDecision{OwnerRole: RoleNurse, Reason: "Clinical, non-urgent"}
	case intent == IntentBilling:
		return RouteDecision{OwnerRole: RoleBilling, Reason: "Billing-related"}
	case intent == IntentAdmin:
		return RouteDecision{OwnerRole: RoleFrontDesk, Reason: "Administrative"}
	default:
		return RouteDecision{OwnerRole: RoleFrontDesk, Reason: "Default routing"}
	}
}
