package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// sectionTask is one required call in a parallel group.
type sectionTask struct {
	section string
	run     func(ctx context.Context) error
}

// fanOut runs every task in parallel. It uses errgroup.WithContext so that
// the first failure cancels the derived context, letting siblings that honour
// it return early. The returned error is the first failure wrapped in a
// SectionError naming its section.
func fanOut(ctx context.Context, tasks []sectionTask) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error {
			if err := task.run(gctx); err != nil {
				return &SectionError{Section: task.section, Err: err}
			}
			return nil
		})
	}
	return g.Wait()
}
