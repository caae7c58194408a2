// Package cfg holds docbox-specific configuration, registered alongside the
// common go-core config structs.
package cfg

import (
	"errors"
	"flag"
	"fmt"

	"github.com/linnemanlabs/docbox/internal/triage"
)

// Config adds app-specific configuration fields following the common
// cfg.Registerable and cfg.Validatable shape.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	ClaudeAPIKey          string
	ClaudeModel           string
	DatabaseURL           string
	SlackWebhookURL       string
	EscalationOwnerRole   string
	GridPreviewLimit      int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude classification oracle (empty = lexical classifier only)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use for classification")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for STAT/escalation notifications")
	fs.StringVar(&c.EscalationOwnerRole, "escalation-owner-role", triage.RoleLeadDoctor, "owner role assigned by manual escalation")
	fs.IntVar(&c.GridPreviewLimit, "grid-preview-limit", triage.DefaultPreviewLimit, "default items per zone in grid responses (1..50)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// The oracle is optional by design, but a key without a model is a
	// misconfiguration rather than an absent oracle.
	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}

	if c.EscalationOwnerRole == "" {
		errs = append(errs, errors.New("ESCALATION_OWNER_ROLE must not be empty"))
	}
	if c.GridPreviewLimit < triage.MinPreviewLimit || c.GridPreviewLimit > triage.MaxPreviewLimit {
		errs = append(errs, fmt.Errorf("invalid GRID_PREVIEW_LIMIT %d (must be %d..%d)",
			c.GridPreviewLimit, triage.MinPreviewLimit, triage.MaxPreviewLimit))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
