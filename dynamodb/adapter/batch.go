package adapter

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxBatchWriteItems is DynamoDB's per-request limit for BatchWriteItem.
const maxBatchWriteItems = 25

// BackoffFunc returns the duration to wait before retry attempt n.
type BackoffFunc func(attempt int) time.Duration

// ExponentialBackoff returns a capped exponential backoff with full jitter.
// Wait time is: rand(0, min(cap, base * multiplier^attempt))
// https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
func ExponentialBackoff(base time.Duration, multiplier float64, cap time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		factor := 1.0
		for i := 0; i < attempt; i++ {
			factor *= multiplier
		}
		backoff := time.Duration(float64(base) * factor)
		if backoff > cap {
			backoff = cap
		}
		if backoff <= 0 {
			return 0
		}
		return time.Duration(rand.Int64N(int64(backoff)))
	}
}

// DefaultBackoff is [ExponentialBackoff] with 50ms base, 2x multiplier, 5s cap.
var DefaultBackoff = ExponentialBackoff(50*time.Millisecond, 2.0, 5*time.Second)

// deleteKeys removes keys from the table of e in groups of maxBatchWriteItems.
// Groups are written concurrently; the first failing group cancels the rest.
func (a *Adapter) deleteKeys(ctx context.Context, e *entry, keys []map[string]types.AttributeValue) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.concurrency)
	for group := range slices.Chunk(keys, maxBatchWriteItems) {
		reqs := make([]types.WriteRequest, len(group))
		for i, k := range group {
			reqs[i] = types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}}
		}
		g.Go(func() error {
			return a.writeBatch(ctx, map[string][]types.WriteRequest{e.keys.Table.Name: reqs})
		})
	}
	return g.Wait()
}

// writeBatch submits pending and resubmits unprocessed items until none are
// left or the retry budget is spent.
func (a *Adapter) writeBatch(ctx context.Context, pending map[string][]types.WriteRequest) error {
	for retries := 0; ; retries++ {
		out, err := a.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: pending,
		})
		if err != nil {
			return fmt.Errorf("batch write failed: %w", err)
		}
		pending = out.UnprocessedItems
		if countRequests(pending) == 0 {
			return nil
		}
		if retries >= a.opts.maxRetries {
			return fmt.Errorf("max retries (%d) exceeded: %d items unprocessed", a.opts.maxRetries, countRequests(pending))
		}
		wait := a.opts.backoff(retries)
		a.log.Debug("batch write retry", zap.Int("unprocessed", countRequests(pending)),
			zap.Int("attempt", retries+1), zap.Duration("wait", wait))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func countRequests(m map[string][]types.WriteRequest) int {
	var n int
	for _, reqs := range m {
		n += len(reqs)
	}
	return n
}
