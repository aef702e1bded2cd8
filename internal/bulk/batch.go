package bulk

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fruitsalade/webclient/internal/metrics"
	"github.com/fruitsalade/webclient/pkg/httperror"
	"github.com/fruitsalade/webclient/pkg/resource"
)

// collector accumulates per-item outcomes from concurrent requests.
type collector struct {
	operation string

	mu     sync.Mutex
	result Result
}

func newCollector(operation string) *collector {
	return &collector{operation: operation, result: newResult()}
}

func (c *collector) add(r resource.Resource, err error) {
	metrics.RecordBulkItem(c.operation, err == nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.result.Successful = append(c.result.Successful, r)
		return
	}
	c.result.Failed = append(c.result.Failed, Failure{
		Resource:  r,
		ErrorData: httperror.DataFromError(err),
	})
}

func (c *collector) Result() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// runBatches calls fn for every resource. Resources are split into batches
// of at most size items; the items of a batch run concurrently and a batch
// starts only after the previous one has settled.
func runBatches(ctx context.Context, resources []resource.Resource, size int, fn func(context.Context, resource.Resource) error, c *collector) {
	for start := 0; start < len(resources); start += size {
		end := min(start+size, len(resources))

		var g errgroup.Group
		for _, r := range resources[start:end] {
			r := r
			g.Go(func() error {
				c.add(r, fn(ctx, r))
				return nil
			})
		}
		g.Wait()
	}
}
