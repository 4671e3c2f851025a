package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/sigmap/internal/graph"
)

// TraceSnapshot is what golden files record for a scenario run.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEntry
	Restored     bool
	NodeCount    int
}

func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, e := range s.Trace {
		trace[i] = e.canonicalMap()
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
		"restored":      s.Restored,
		"node_count":    s.NodeCount,
	}
}

// Golden renders result as the canonical JSON stored in golden files.
func Golden(name string, result *Result) ([]byte, error) {
	snap := TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		Restored:     result.Restored(),
		NodeCount:    result.NodeCount,
	}
	return graph.MarshalCanonical(snap.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Golden(scenarioName, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
