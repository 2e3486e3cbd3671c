package enrich

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"cardloom/internal/deck"
	"cardloom/internal/logging"
	"cardloom/internal/services"
)

// EnrichAll enriches a batch of records in place-preserving order: the
// returned slice is index-aligned with the inputs and every element is a
// copy, enriched where possible. A record whose enrichment fails or
// panics comes back as an unmodified copy. Cancellation is honored
// between items; already finished items are kept.
func (e *Enricher) EnrichAll(ctx context.Context, records []deck.Record, items []Item) ([]deck.Record, error) {
	if len(records) != len(items) {
		return nil, services.Wrap(services.ErrConfiguration, "enrich", "batch",
			"records and items must be index-aligned", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	out := make([]deck.Record, len(records))
	for i := range records {
		out[i] = records[i].Clone()
	}

	if e.workers <= 1 {
		for i := range items {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			e.mergeItem(ctx, out, i, items[i])
		}
		return out, nil
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if ctx.Err() != nil {
					continue
				}
				e.mergeItem(ctx, out, i, items[i])
			}
		}()
	}
	for i := range items {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return out, ctx.Err()
}

// mergeItem enriches one item and folds the produced fields into out[i].
// Workers own distinct indexes, so no locking is needed on out.
func (e *Enricher) mergeItem(ctx context.Context, out []deck.Record, i int, item Item) {
	log := e.logger.With(
		logging.Int(logging.FieldItemIndex, i),
		logging.String("item_id", uuid.NewString()))
	fields := e.enrichGuarded(ctx, log, item)
	for field, value := range fields {
		out[i][field] = value
	}
}

// enrichGuarded contains panics from a single item so one bad card cannot
// take down the batch.
func (e *Enricher) enrichGuarded(ctx context.Context, log *slog.Logger, item Item) (fields Result) {
	defer func() {
		if r := recover(); r != nil {
			fields = nil
			log.Error("item enrichment panicked, keeping record unmodified",
				logging.Any("panic", r),
				logging.String(logging.FieldEventType, "item_panic"))
		}
	}()
	return e.enrich(ctx, log, item)
}
