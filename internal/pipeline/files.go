package pipeline

import (
	"context"
	"os"

	"golang.org/x/sync/errgroup"
)

// RunFile decodes the capture at path. The pipeline name defaults to path.
func RunFile(ctx context.Context, path string, cfg Config) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if cfg.Name == "" {
		cfg.Name = path
	}
	return New(cfg).Run(ctx, f)
}

// RunFiles decodes several captures with at most workers running at once.
// Each capture gets its own correlator and statistics; results keep the
// order of paths. The first failure cancels the remaining runs.
func RunFiles(ctx context.Context, paths []string, cfg Config, workers int) ([]*Result, error) {
	if workers <= 0 {
		workers = 1
	}

	results := make([]*Result, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		g.Go(func() error {
			c := cfg
			c.Name = path
			res, err := RunFile(ctx, path, c)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
