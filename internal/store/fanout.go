package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/helplinehq/supportchat/backend/internal/metrics"
	"github.com/helplinehq/supportchat/backend/internal/model/chat"
)

// Fanout writes to every configured store and merges their histories on
// read. One store failing never blocks the others: write failures are
// logged and counted, read failures degrade that store's contribution
// to an empty result.
type Fanout struct {
	stores []DurableStore
	logger zerolog.Logger
}

// NewFanout wraps the given stores. Store order is fixed and determines
// which record wins when duplicates disagree on identity fields.
func NewFanout(logger zerolog.Logger, stores ...DurableStore) *Fanout {
	return &Fanout{stores: stores, logger: logger}
}

// Stores returns the wrapped stores, for health checks.
func (f *Fanout) Stores() []DurableStore {
	return f.stores
}

// SaveAll persists msg to every store independently. It returns once
// all attempts finish; per-store errors are swallowed after logging.
func (f *Fanout) SaveAll(ctx context.Context, msg chat.Message) {
	var wg sync.WaitGroup
	for _, s := range f.stores {
		wg.Add(1)
		go func(s DurableStore) {
			defer wg.Done()
			if err := s.Save(ctx, msg); err != nil {
				metrics.StoreFailures.WithLabelValues(s.Name(), "save").Inc()
				f.logger.Error().
					Err(err).
					Str("store", s.Name()).
					Str("session_id", msg.SessionID).
					Msg("store save failed")
			}
		}(s)
	}
	wg.Wait()
}

// Reconcile queries every store concurrently and merges the results
// into one ordered view: union, dedup by (timestamp, sender, content)
// with first occurrence winning in store-configuration order, ascending
// timestamp sort, last limit entries. An erroring store contributes an
// empty result; the merge itself never fails.
func (f *Fanout) Reconcile(ctx context.Context, sessionID string, limit int) []chat.Message {
	results := make([][]chat.Message, len(f.stores))

	var wg sync.WaitGroup
	for i, s := range f.stores {
		wg.Add(1)
		go func(i int, s DurableStore) {
			defer wg.Done()
			msgs, err := s.History(ctx, sessionID)
			if err != nil {
				metrics.StoreFailures.WithLabelValues(s.Name(), "query").Inc()
				f.logger.Error().
					Err(err).
					Str("store", s.Name()).
					Str("session_id", sessionID).
					Msg("store history query failed")
				return
			}
			results[i] = msgs
		}(i, s)
	}
	wg.Wait()

	seen := make(map[string]struct{})
	var merged []chat.Message
	for _, msgs := range results {
		for _, m := range msgs {
			k := m.DedupKey()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, m)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[len(merged)-limit:]
	}
	return merged
}
