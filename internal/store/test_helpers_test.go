package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/sigmap/internal/graph"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestArena builds a small diagram: TP53 (gene 7157), MDM2 (gene 4193,
// also listed under 7157) and a miRNA node.
func createTestArena(t *testing.T) (*graph.Arena, []graph.NodeID) {
	t.Helper()
	a := graph.NewArena()
	tp53 := a.AddNode(graph.Visual{Label: "TP53"}, map[string]string{graph.AnnotationGeneIDs: "7157"})
	mdm2 := a.AddNode(graph.Visual{Label: "MDM2"}, map[string]string{graph.AnnotationGeneIDs: "4193, 7157"})
	mir := a.AddNode(graph.Visual{Label: "miR-21"}, map[string]string{graph.AnnotationRNA: "hsa-mir-21"})
	return a, []graph.NodeID{tp53, mdm2, mir}
}

// pragma reads a PRAGMA value as text.
func pragma(t *testing.T, s *Store, name string) string {
	t.Helper()
	var v any
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&v); err != nil {
		t.Fatalf("PRAGMA %s failed: %v", name, err)
	}
	switch v := v.(type) {
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
