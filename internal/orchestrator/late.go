package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"github.com/dusk-indust/stratagen/internal/strategy"
)

// PendingNames returns the names of the sources still pending.
func (res *Result) PendingNames() []string {
	names := make([]string, 0, len(res.Pending))
	for name := range res.Pending {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MergeLate waits for the named pending source and merges its enrichment into
// the artifact without re-running the pipeline. Hooks and tier are not
// recomputed. If ctx ends first the handle stays pending. A source that
// resolved with an error is dropped from Pending and the error returned.
// MergeLate is not safe for concurrent use on the same Result.
func (res *Result) MergeLate(ctx context.Context, name string) error {
	if res.Artifact == nil {
		return fmt.Errorf("pipeline: run %s produced no artifact", res.RunID)
	}
	f, ok := res.Pending[name]
	if !ok {
		return fmt.Errorf("pipeline: no pending data for %q", name)
	}

	enr, err := f.Await(ctx)
	if _, _, done := f.Peek(); !done {
		return fmt.Errorf("pipeline: waiting for %s: %w", name, err)
	}
	delete(res.Pending, name)
	if err != nil {
		return fmt.Errorf("pipeline: late data %s failed: %w", name, err)
	}

	if name == strategy.SectionCompetitorIntel && res.pendingIntel != nil {
		if intel, err, ok := res.pendingIntel.Peek(); ok && err == nil {
			res.Artifact.Competitors = intel
		}
	}
	res.Artifact.Enrichment = res.Artifact.Enrichment.Merge(enr)
	res.Artifact.LateMerged = append(res.Artifact.LateMerged, name)
	if res.ledger != nil {
		res.Artifact.Sections = res.ledger.Snapshot()
		res.Artifact.TotalCost = res.ledger.TotalCost()
		res.Artifact.Usage = res.ledger.Usage()
	}
	return nil
}
