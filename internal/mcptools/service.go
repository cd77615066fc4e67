package mcptools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/dusk-indust/stratagen/internal/export"
	"github.com/dusk-indust/stratagen/internal/hooks"
	"github.com/dusk-indust/stratagen/internal/orchestrator"
	"github.com/dusk-indust/stratagen/internal/provider"
	"github.com/dusk-indust/stratagen/internal/reconcile"
)

// StrategyService handles MCP tool calls for the stratagen server mode.
// It wraps a Pipeline to run strategies and exposes the pure checks
// directly.
type StrategyService struct {
	pipeline *orchestrator.Pipeline
	cfg      ServiceConfig
}

// ServiceConfig holds the defaults applied to tool calls.
type ServiceConfig struct {
	Grace  time.Duration
	Policy hooks.Policy
	Late   map[string]provider.LateFunc
	Logger *zap.Logger
}

// NewStrategyService creates a StrategyService with the given pipeline and
// config. A zero Policy means the default policy.
func NewStrategyService(pipeline *orchestrator.Pipeline, cfg ServiceConfig) *StrategyService {
	if cfg.Policy.Total == 0 {
		cfg.Policy = hooks.DefaultPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &StrategyService{pipeline: pipeline, cfg: cfg}
}

// GenerateStrategy runs the pipeline once and returns the rendered document.
// Pipeline failures are reported in the output, not as tool errors.
func (s *StrategyService) GenerateStrategy(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GenerateStrategyInput,
) (*mcp.CallToolResult, GenerateStrategyOutput, error) {
	if input.Context == "" {
		return nil, GenerateStrategyOutput{Status: "failed", Message: "context is required"},
			errors.New("context is required")
	}

	grace := s.cfg.Grace
	if input.GraceMs != nil {
		grace = time.Duration(*input.GraceMs) * time.Millisecond
	}

	res, err := s.pipeline.Run(ctx, orchestrator.Input{
		Context:     input.Context,
		PreSupplied: input.PreSupplied,
		Late:        s.cfg.Late,
		Grace:       grace,
	})
	if err != nil {
		status := "failed"
		if errors.Is(err, orchestrator.ErrCancelled) {
			status = "cancelled"
		}
		return nil, GenerateStrategyOutput{
			RunID:   res.RunID,
			Status:  status,
			Section: res.Section,
			Message: err.Error(),
		}, nil
	}

	md, err := export.Markdown(res.Artifact)
	if err != nil {
		return nil, GenerateStrategyOutput{}, fmt.Errorf("render strategy: %w", err)
	}

	s.cfg.Logger.Info("mcp: strategy generated",
		zap.String("run_id", res.RunID),
		zap.Float64("cost", res.Artifact.TotalCost),
		zap.Strings("pending", res.PendingNames()),
	)

	return nil, GenerateStrategyOutput{
		RunID:     res.RunID,
		Status:    "completed",
		Markdown:  md,
		Tier:      res.Artifact.Tier,
		Hooks:     res.Artifact.Hooks,
		Pending:   res.PendingNames(),
		TotalCost: res.Artifact.TotalCost,
	}, nil
}

// ValidateHooks checks hook candidates against the diversity policy and,
// when a pool is supplied, returns the repaired list.
func (s *StrategyService) ValidateHooks(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ValidateHooksInput,
) (*mcp.CallToolResult, ValidateHooksOutput, error) {
	violations := s.cfg.Policy.Check(input.Hooks)
	out := ValidateHooksOutput{
		Violations: violations,
		Mix:        hooks.Summarize(input.Hooks),
	}
	if out.Violations == nil {
		out.Violations = []hooks.Violation{}
	}
	if len(input.Pool) > 0 {
		out.Remediated = s.cfg.Policy.Remediate(input.Hooks, violations, input.Pool)
		out.Mix = hooks.Summarize(out.Remediated)
	}
	return nil, out, nil
}

// ClassifyTier reports the source tier and hook quotas for a set of creative
// sources.
func (s *StrategyService) ClassifyTier(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ClassifyTierInput,
) (*mcp.CallToolResult, ClassifyTierOutput, error) {
	tier := hooks.ClassifySourceTier(input.Sources)
	return nil, ClassifyTierOutput{Tier: tier, Quotas: s.cfg.Policy.QuotasFor(tier)}, nil
}

// Reconcile resolves contradictions between an ICP and an offer analysis.
func (s *StrategyService) Reconcile(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ReconcileInput,
) (*mcp.CallToolResult, ReconcileOutput, error) {
	return nil, ReconcileOutput{Result: reconcile.Reconcile(input.ICP, input.Offer)}, nil
}
