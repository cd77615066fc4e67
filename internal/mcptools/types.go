package mcptools

import (
	"github.com/dusk-indust/stratagen/internal/hooks"
	"github.com/dusk-indust/stratagen/internal/reconcile"
	"github.com/dusk-indust/stratagen/internal/strategy"
)

// --- MCP Tool Types for the stratagen server mode (serve-mcp) ---

// GenerateStrategyInput is the input for the generate_strategy MCP tool.
type GenerateStrategyInput struct {
	Context     string               `json:"context" jsonschema:"business context the strategy is generated for"`
	GraceMs     *int                 `json:"graceMs,omitempty" jsonschema:"milliseconds optional enrichment may take after analysis (default: server setting)"`
	PreSupplied *strategy.Enrichment `json:"preSupplied,omitempty" jsonschema:"enrichment data already collected by the caller"`
}

// GenerateStrategyOutput is the result of the generate_strategy MCP tool.
type GenerateStrategyOutput struct {
	RunID     string            `json:"runId"`
	Status    string            `json:"status"` // "completed", "failed" or "cancelled"
	Section   string            `json:"section,omitempty"`
	Message   string            `json:"message,omitempty"`
	Markdown  string            `json:"markdown,omitempty"`
	Tier      hooks.Tier        `json:"tier,omitempty"`
	Hooks     []hooks.Candidate `json:"hooks,omitempty"`
	Pending   []string          `json:"pending,omitempty"`
	TotalCost float64           `json:"totalCost"`
}

// ValidateHooksInput is the input for the validate_hooks MCP tool.
type ValidateHooksInput struct {
	Hooks []hooks.Candidate `json:"hooks" jsonschema:"hook candidates to check"`
	Pool  []hooks.Candidate `json:"pool,omitempty" jsonschema:"fallback candidates used to repair violations"`
}

// ValidateHooksOutput is the result of the validate_hooks MCP tool.
type ValidateHooksOutput struct {
	Violations []hooks.Violation `json:"violations"`
	Remediated []hooks.Candidate `json:"remediated,omitempty"`
	Mix        hooks.Mix         `json:"mix"`
}

// ClassifyTierInput is the input for the classify_tier MCP tool.
type ClassifyTierInput struct {
	Sources []hooks.CreativeSource `json:"sources" jsonschema:"competitor creative sources with usable ad text"`
}

// ClassifyTierOutput is the result of the classify_tier MCP tool.
type ClassifyTierOutput struct {
	Tier   hooks.Tier   `json:"tier"`
	Quotas hooks.Quotas `json:"quotas"`
}

// ReconcileInput is the input for the reconcile MCP tool.
type ReconcileInput struct {
	ICP   strategy.ICPAnalysis   `json:"icp" jsonschema:"ideal customer profile analysis"`
	Offer strategy.OfferAnalysis `json:"offer" jsonschema:"offer analysis to reconcile against the ICP"`
}

// ReconcileOutput is the result of the reconcile MCP tool.
type ReconcileOutput struct {
	Result reconcile.Result `json:"result"`
}
