package aggregate

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/sigmap/internal/record"
	"github.com/roach88/sigmap/internal/signal"
)

// KeyFunc chooses the bucket a record belongs to.
type KeyFunc func(*record.Record) string

// ByIdentifier groups by gene identifier, falling back to the normalized name.
// Modifications of different analytes of one gene stay apart.
func ByIdentifier(r *record.Record) string {
	if id, _ := r.Analyte(); id != "" {
		return r.Identifier() + "/" + id
	}
	return r.Identifier()
}

// Group is one GroupBy bucket.
type Group struct {
	Key     string
	Records []*record.Record
}

// GroupBy places every record into exactly one bucket. Buckets appear in the
// order their first record was seen.
func GroupBy(records []*record.Record, key KeyFunc) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, r := range records {
		k := key(r)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	return groups
}

// GeneCentered merges records sharing an identifier, producing one record per
// distinct identifier.
func GeneCentered(records []*record.Record, m signal.MergeType) ([]*record.Record, error) {
	groups := GroupBy(records, ByIdentifier)
	out := make([]*record.Record, 0, len(groups))
	for _, g := range groups {
		merged, err := Merge(g.Records, m)
		if err != nil {
			return nil, fmt.Errorf("gene-center %s: %w", g.Key, err)
		}
		out = append(out, merged)
	}
	return out, nil
}

// GeneCenteredIfNeeded returns records unchanged (and false) when every
// identifier already occurs once.
func GeneCenteredIfNeeded(records []*record.Record, m signal.MergeType) ([]*record.Record, bool, error) {
	groups := GroupBy(records, ByIdentifier)
	if len(groups) == len(records) {
		return records, false, nil
	}
	out, err := GeneCentered(records, m)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// GeneCenteredSubset merges only the identifier groups listed in ids and keeps
// every other record as is.
func GeneCenteredSubset(records []*record.Record, ids []string, m signal.MergeType) ([]*record.Record, error) {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []*record.Record
	for _, g := range GroupBy(records, ByIdentifier) {
		if !wanted[g.Key] || len(g.Records) == 1 {
			out = append(out, g.Records...)
			continue
		}
		merged, err := Merge(g.Records, m)
		if err != nil {
			return nil, fmt.Errorf("gene-center %s: %w", g.Key, err)
		}
		out = append(out, merged)
	}
	return out, nil
}

// GeneCenteredAll gene-centers independent collections in parallel. When ids
// is non-empty only those identifier groups are merged. Collections without
// duplicate identifiers come back unchanged. The result is fully materialized
// before it is returned, in input order.
func GeneCenteredAll(ctx context.Context, collections [][]*record.Record, ids []string, m signal.MergeType) ([][]*record.Record, error) {
	out := make([][]*record.Record, len(collections))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, c := range collections {
		i, c := i, c
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var merged []*record.Record
			var err error
			if len(ids) > 0 {
				merged, err = GeneCenteredSubset(c, ids, m)
			} else {
				merged, _, err = GeneCenteredIfNeeded(c, m)
			}
			if err != nil {
				return fmt.Errorf("collection %d: %w", i, err)
			}
			out[i] = merged
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
