package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/sigmap/internal/graph"
	"github.com/roach88/sigmap/internal/record"
)

const (
	kindGene = "gene"
	kindRNA  = "rna"
)

// IdentifierToNodes returns the nodes indexed for id in ascending order.
// Gene identifiers <= 0 and empty RNA names resolve to nothing.
func (s *Store) IdentifierToNodes(ctx context.Context, id graph.Identifier) ([]graph.NodeID, error) {
	kind, key, ok := indexKey(id)
	if !ok {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT node_id FROM identifier_nodes WHERE kind = ? AND ident = ? ORDER BY node_id`,
		kind, key)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", id, err)
	}
	defer rows.Close()

	var out []graph.NodeID
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan %s: %w", id, err)
		}
		out = append(out, graph.NodeID(n))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup %s: %w", id, err)
	}
	return out, nil
}

// put indexes node under (kind, key). An existing entry is kept.
func put(ctx context.Context, tx *sql.Tx, kind, key string, node graph.NodeID) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO identifier_nodes (kind, ident, node_id) VALUES (?, ?, ?)`,
		kind, key, int64(node))
	if err != nil {
		return fmt.Errorf("index %s:%s -> %d: %w", kind, key, node, err)
	}
	return nil
}

// BuildFromArena rebuilds the index from the identifier annotations of the
// arena's template nodes and records the rebuild in index_meta. Returns the
// number of entries written.
func (s *Store) BuildFromArena(ctx context.Context, a *graph.Arena) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM identifier_nodes`); err != nil {
		return 0, fmt.Errorf("clear index: %w", err)
	}

	count := 0
	nodes := make(map[graph.NodeID]bool)
	for _, n := range a.Nodes() {
		if !n.Template {
			continue
		}
		for _, raw := range splitList(n.Annotations[graph.AnnotationGeneIDs]) {
			gid, err := strconv.Atoi(raw)
			if err != nil {
				return 0, fmt.Errorf("node %d: invalid gene id %q: %w", n.ID, raw, err)
			}
			kind, key, ok := indexKey(graph.Identifier{GeneID: gid})
			if !ok {
				continue
			}
			if err := put(ctx, tx, kind, key, n.ID); err != nil {
				return 0, err
			}
			nodes[n.ID] = true
			count++
		}
		for _, name := range splitList(n.Annotations[graph.AnnotationRNA]) {
			kind, key, _ := indexKey(graph.Identifier{RNA: name})
			if err := put(ctx, tx, kind, key, n.ID); err != nil {
				return 0, err
			}
			nodes[n.ID] = true
			count++
		}
	}

	meta := [][2]string{
		{metaEntries, strconv.Itoa(count)},
		{metaNodes, strconv.Itoa(len(nodes))},
		{metaBuiltAt, time.Now().UTC().Format(time.RFC3339)},
	}
	for _, kv := range meta {
		if err := setMeta(ctx, tx, kv[0], kv[1]); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit rebuild: %w", err)
	}
	return count, nil
}

func indexKey(id graph.Identifier) (kind, key string, ok bool) {
	if id.GeneID > 0 {
		return kindGene, strconv.Itoa(id.GeneID), true
	}
	name := record.NormalizeIdentifier(id.RNA)
	if name == "" {
		return "", "", false
	}
	return kindRNA, name, true
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
