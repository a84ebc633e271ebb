package core

import (
	"context"
	"fmt"

	"github.com/lumipallolabs/facetmap/internal/search"
)

// Run loads the root level and zooms through names in order, fetching inline
// Used where there is no event loop: the CLI, the HTTP facade and snapshots.
func (c *Controller) Run(ctx context.Context, q search.Querier, names ...string) error {
	if _, err := c.Apply(c.Load().Run(ctx, q)); err != nil {
		return err
	}
	for _, name := range names {
		f, err := c.ZoomTo(name)
		if err != nil {
			return err
		}
		if f == nil {
			continue
		}
		if _, err := c.Apply(f.Run(ctx, q)); err != nil {
			return fmt.Errorf("zoom %q: %w", name, err)
		}
	}
	return nil
}
