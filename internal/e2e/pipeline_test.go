//go:build e2e

package e2e

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/stratagen/internal/export"
	"github.com/dusk-indust/stratagen/internal/hooks"
	"github.com/dusk-indust/stratagen/internal/orchestrator"
	"github.com/dusk-indust/stratagen/internal/provider"
	"github.com/dusk-indust/stratagen/internal/strategy"
)

const brief = "Accounts payable automation for marketing agencies with 10-50 staff."

func replayDir() string {
	return filepath.Join("..", "..", "testdata", "replay")
}

// runReplay runs the full pipeline over the replay fixtures with the given
// grace and returns the result.
func runReplay(t *testing.T, grace time.Duration) *orchestrator.Result {
	t.Helper()

	replay, err := provider.NewReplay(replayDir())
	require.NoError(t, err)
	late, err := replay.Late()
	require.NoError(t, err)

	pipeline := orchestrator.NewPipeline(replay)
	pr := orchestrator.NewProgressReporter()
	events := pr.Subscribe()
	drainDone := make(chan []orchestrator.ProgressEvent)
	go func() {
		var seen []orchestrator.ProgressEvent
		for ev := range events {
			seen = append(seen, ev)
		}
		drainDone <- seen
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := pipeline.Run(ctx, orchestrator.Input{
		Context:  brief,
		Observer: pr.Emit,
		Late:     late,
		Grace:    grace,
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	pr.Close()
	seen := <-drainDone
	require.NotEmpty(t, seen)
	assert.Equal(t, orchestrator.PhaseResearch, seen[0].Phase)
	assert.Equal(t, orchestrator.PhaseSynthesis, seen[len(seen)-1].Phase)
	return res
}

// TestPipeline_E2E_Replay runs all three phases over the replay fixtures and
// checks every part of the artifact the document is built from.
func TestPipeline_E2E_Replay(t *testing.T) {
	res := runReplay(t, 500*time.Millisecond)
	art := res.Artifact
	require.NotNil(t, art)

	assert.Equal(t, "Agency AP Automation Launch Strategy", art.Synthesis.Title)
	require.NotNil(t, art.Competitors, "competitor intel arrives within the research phase")
	assert.Equal(t, hooks.TierStandard, art.Tier)

	// Economics are already marginal, so the blocking budget risk has
	// nothing left to cap.
	assert.Empty(t, art.Reconciliation.Adjustments)
	assert.Contains(t, art.Reconciliation.Notes, "no conflicts detected")
	assert.Equal(t, strategy.RecommendProceed, art.Offer.Recommendation)
	assert.InDelta(t, 8.5, art.Offer.OverallScore, 1e-9)

	assert.Empty(t, art.Violations)
	assert.Empty(t, hooks.DefaultPolicy().Check(art.Hooks))
	assert.Equal(t, len(art.Hooks), art.HookMix.Total)

	require.NotNil(t, art.Enrichment)
	assert.Len(t, art.Enrichment.Keywords, 3)
	assert.Empty(t, art.Enrichment.AdSources, "the ad library misses the grace deadline")
	assert.Equal(t, []string{"ad-library"}, res.PendingNames())

	for _, section := range []string{
		strategy.SectionIndustryResearch,
		strategy.SectionCompetitorIntel,
		strategy.SectionICPAnalysis,
		strategy.SectionOfferAnalysis,
		strategy.SectionSynthesis,
	} {
		assert.Contains(t, art.Sections, section)
	}
	assert.Greater(t, art.TotalCost, 0.0)
	assert.Greater(t, art.Usage.Total, 0)

	md, err := export.Markdown(art)
	require.NoError(t, err)
	for _, heading := range []string{"# Agency AP Automation Launch Strategy", "## Market", "## Hooks", "## positioning", "## channels"} {
		assert.Contains(t, md, heading)
	}
}

// TestPipeline_E2E_MergeLate waits for the slow ad library after the run and
// merges it into the finished artifact.
func TestPipeline_E2E_MergeLate(t *testing.T) {
	res := runReplay(t, 100*time.Millisecond)
	art := res.Artifact
	before := art.TotalCost
	hooksBefore := len(art.Hooks)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, res.MergeLate(ctx, "ad-library"))

	assert.Empty(t, res.PendingNames())
	assert.Equal(t, []string{"ad-library"}, art.LateMerged)
	require.Len(t, art.Enrichment.AdSources, 1)
	assert.Equal(t, "Billflow", art.Enrichment.AdSources[0].Name)
	assert.InDelta(t, before+0.006, art.TotalCost, 1e-9)
	assert.Len(t, art.Hooks, hooksBefore, "merging does not recompute hooks")

	data, err := export.MarshalStrategy(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Billflow")
}

// TestPipeline_E2E_ZeroGrace checks that a zero grace leaves every late
// source pending rather than waiting for any of them.
func TestPipeline_E2E_ZeroGrace(t *testing.T) {
	res := runReplay(t, 0)
	assert.Contains(t, res.PendingNames(), "ad-library")
	assert.NotNil(t, res.Artifact.Synthesis)
}
