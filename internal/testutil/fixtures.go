package testutil

import (
	"context"

	"github.com/roach88/sigmap/internal/graph"
	"github.com/roach88/sigmap/internal/record"
	"github.com/roach88/sigmap/internal/signal"
)

// GeneRecord builds a gene record carrying one signal per value under
// (experiment, t).
func GeneRecord(name string, geneID int, experiment string, t signal.Type, values ...float64) *record.Record {
	r := record.NewGene(name, geneID)
	for _, v := range values {
		r.AddSignal(signal.New(v, experiment, t))
	}
	return r
}

// MapResolver resolves identifiers from fixed tables without a database.
type MapResolver struct {
	Genes map[int][]graph.NodeID
	RNA   map[string][]graph.NodeID
	Err   error
}

// IdentifierToNodes implements project.Resolver.
func (m *MapResolver) IdentifierToNodes(ctx context.Context, id graph.Identifier) ([]graph.NodeID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if id.GeneID > 0 {
		return m.Genes[id.GeneID], nil
	}
	return m.RNA[record.NormalizeIdentifier(id.RNA)], nil
}
