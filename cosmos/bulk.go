package cosmos

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/shaclpipe/shaclpipe/jsonld"
)

// DefaultConcurrency is the bulk upsert worker bound when none is given.
const DefaultConcurrency = 25

// BulkResult aggregates a bulk upsert run. No per-document ordering is
// preserved; counts and errors are accurate at completion or cancellation.
type BulkResult struct {
	Succeeded int
	Failed    int
	TotalRU   float64
	Errors    []*Error
}

// UpsertMany drains docs and upserts each document under a bounded
// concurrency. A per-document failure is folded into the result as a typed
// error without failing the batch; the two exceptions are an Auth failure
// on the first upsert to complete (before any other document has succeeded
// or failed), which aborts immediately, and context
// cancellation, which stops launching new upserts while in-flight ones
// complete.
func UpsertMany(ctx context.Context, client Client, docs <-chan *jsonld.Object, concurrency int, partitionValue string) (*BulkResult, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	result := &BulkResult{}

	var (
		mu       sync.Mutex
		started  bool
		authStop error
	)

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(concurrency))

	for doc := range docs {
		if gctx.Err() != nil {
			break
		}

		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}

		g.Go(func() error {
			defer sem.Release(1)

			prepared, err := Prepare(doc, partitionValue)
			if err != nil {
				record(result, &mu, 0, AsError(idOf(doc), err))

				return nil
			}

			id, _ := prepared.Get("id")
			pk, _ := prepared.Get("partitionKey")
			pkStr, _ := pk.(string)

			resp, err := client.Upsert(gctx, prepared, pkStr)
			if err != nil {
				typed := AsError(fmt.Sprint(id), err)

				mu.Lock()
				firstFailure := !started
				started = true
				mu.Unlock()

				if typed.Kind == KindAuth && firstFailure {
					mu.Lock()
					authStop = typed
					mu.Unlock()

					return typed
				}

				record(result, &mu, 0, typed)

				return nil
			}

			mu.Lock()
			started = true
			mu.Unlock()

			record(result, &mu, resp.RUCharge, nil)

			return nil
		})
	}

	err := g.Wait()

	if authStop != nil {
		return result, authStop
	}

	if err != nil {
		return result, err
	}

	return result, ctx.Err()
}

// UpsertAll is [UpsertMany] over an in-memory slice.
func UpsertAll(ctx context.Context, client Client, docs []*jsonld.Object, concurrency int, partitionValue string) (*BulkResult, error) {
	ch := make(chan *jsonld.Object)

	go func() {
		defer close(ch)

		for _, doc := range docs {
			select {
			case ch <- doc:
			case <-ctx.Done():
				return
			}
		}
	}()

	return UpsertMany(ctx, client, ch, concurrency, partitionValue)
}

// record updates the shared counters. The lock covers only the counter
// update, never an upsert call.
func record(result *BulkResult, mu *sync.Mutex, ru float64, failure *Error) {
	mu.Lock()
	defer mu.Unlock()

	if failure != nil {
		result.Failed++
		result.Errors = append(result.Errors, failure)

		return
	}

	result.Succeeded++
	result.TotalRU += ru
}

func idOf(doc *jsonld.Object) string {
	if v, ok := doc.Get("@id"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}

	return ""
}
