package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ComparisonRegion is one entry in an execute_comparison request: a region
// label paired with the question to run for it.
type ComparisonRegion struct {
	Region   string `json:"region"`
	Question string `json:"question"`
}

// RegionResult is one region's outcome within a comparison envelope.
// Unlike the rest of the pipeline, a failing region never fails the whole
// comparison — per spec.md §4.6, partial success is allowed.
type RegionResult struct {
	Region string `json:"region"`
	Result
}

// RunComparison runs one pipeline invocation per region concurrently and
// joins the results into a single envelope. It never returns an error
// itself; a region's own failure is carried in its RegionResult.
func (p *Pipeline) RunComparison(ctx context.Context, regions []ComparisonRegion, sessCtx *SessionContext) []RegionResult {
	results := make([]RegionResult, len(regions))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(len(regions))

	for i, region := range regions {
		i, region := i, region

		group.Go(func() error {
			results[i] = RegionResult{
				Region: region.Region,
				Result: p.Run(groupCtx, region.Question, sessCtx),
			}

			return nil
		})
	}

	// Errors are never returned by the goroutines above (a failing region
	// is captured in its own Result.Success=false), so Wait only blocks
	// until every region has finished.
	_ = group.Wait()

	return results
}
