package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sigmap/internal/graph"
	"github.com/roach88/sigmap/internal/signal"
)

// Scenario is one projection test case.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	Graph   GraphSpec    `yaml:"graph"`
	Records []RecordSpec `yaml:"records"`

	// GeneCentered merges records sharing a gene identifier before any
	// operation runs.
	GeneCentered bool `yaml:"gene_centered,omitempty"`

	// GeneCenteredIDs restricts gene-centering to these identifiers
	// (e.g. "gene:42", "name:MIR-21").
	GeneCenteredIDs []string `yaml:"gene_centered_ids,omitempty"`

	// Config overlays the default configuration, using the same keys as a
	// config file.
	Config map[string]any `yaml:"config,omitempty"`

	Ops        []OpStep    `yaml:"ops"`
	Assertions []Assertion `yaml:"assertions"`
}

// GraphSpec is the diagram a scenario starts from.
type GraphSpec struct {
	Nodes []NodeSpec `yaml:"nodes"`
	Links []LinkSpec `yaml:"links,omitempty"`
}

// NodeSpec declares one template node. ID is a symbolic name used by links
// and assertions; arena ids follow declaration order.
type NodeSpec struct {
	ID          string            `yaml:"id"`
	GeneIDs     []int             `yaml:"gene_ids,omitempty"`
	RNA         []string          `yaml:"rna,omitempty"`
	Visual      graph.Visual      `yaml:"visual"`
	Annotations map[string]string `yaml:"annotations,omitempty"`
}

// LinkSpec is an edge between two declared nodes.
type LinkSpec struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// RecordSpec declares one record. A record without gene_id resolves by name.
type RecordSpec struct {
	Name    string         `yaml:"name"`
	GeneID  int            `yaml:"gene_id,omitempty"`
	Signals []SignalSpec   `yaml:"signals,omitempty"`
	Data    map[string]any `yaml:"data,omitempty"`
}

// SignalSpec declares one signal of a record.
type SignalSpec struct {
	Value      float64     `yaml:"value"`
	Experiment string      `yaml:"experiment"`
	Type       signal.Type `yaml:"type"`
}

// OpStep is one operation submitted to the session.
type OpStep struct {
	// Op is toggle, project, remove, verify or snapshot.
	Op string `yaml:"op"`

	Key graph.ProjectionKey `yaml:"key,omitempty"`

	// Records selects records by name; empty means all of them.
	Records []string `yaml:"records,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect checks the outcome of one operation. Unset fields are not checked.
type Expect struct {
	Action  string   `yaml:"action,omitempty"`
	Applied *int     `yaml:"applied,omitempty"`
	Missed  []string `yaml:"missed,omitempty"`
	Stale   *bool    `yaml:"stale,omitempty"`
	// Error is a substring of the operation's error. Empty means success.
	Error string `yaml:"error,omitempty"`
}

// Assertion checks the final diagram.
type Assertion struct {
	Type     string              `yaml:"type"`
	Node     string              `yaml:"node,omitempty"`
	Key      graph.ProjectionKey `yaml:"key,omitempty"`
	Kind     string              `yaml:"kind,omitempty"`
	Record   string              `yaml:"record,omitempty"`
	Contains string              `yaml:"contains,omitempty"`
	Fill     string              `yaml:"fill,omitempty"`
	Count    int                 `yaml:"count,omitempty"`
}

// Assertion types.
const (
	AssertNodeKind        = "node_kind"
	AssertChildCount      = "child_count"
	AssertBound           = "bound"
	AssertSummaryContains = "summary_contains"
	AssertBoxesContains   = "boxes_contains"
	AssertFill            = "fill"
	AssertRestored        = "restored"
	AssertInvariants      = "invariants"
	AssertNodeCount       = "node_count"
	AssertLayers          = "layers"
)

var validOps = map[string]bool{
	"toggle":   true,
	"project":  true,
	"remove":   true,
	"verify":   true,
	"snapshot": true,
}

// LoadScenario reads and validates a scenario file. Unknown keys are
// rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

// Input is a diagram with records, without operations or assertions.
type Input struct {
	Graph   GraphSpec    `yaml:"graph"`
	Records []RecordSpec `yaml:"records,omitempty"`
}

// LoadInput reads a diagram file. Scenario files are accepted too; their
// operations and assertions are ignored.
func LoadInput(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(s.Graph.Nodes) == 0 {
		return nil, fmt.Errorf("graph.nodes is required and must be non-empty")
	}
	return &Input{Graph: s.Graph, Records: s.Records}, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Graph.Nodes) == 0 {
		return fmt.Errorf("graph.nodes is required and must be non-empty")
	}
	if len(s.Ops) == 0 {
		return fmt.Errorf("ops list is required and must be non-empty")
	}

	nodes := make(map[string]bool, len(s.Graph.Nodes))
	for i, n := range s.Graph.Nodes {
		if n.ID == "" {
			return fmt.Errorf("graph.nodes[%d]: id is required", i)
		}
		if nodes[n.ID] {
			return fmt.Errorf("graph.nodes[%d]: duplicate id %q", i, n.ID)
		}
		nodes[n.ID] = true
	}
	for i, l := range s.Graph.Links {
		if !nodes[l.From] || !nodes[l.To] {
			return fmt.Errorf("graph.links[%d]: unknown node in %s -> %s", i, l.From, l.To)
		}
	}

	records := make(map[string]bool, len(s.Records))
	for i, r := range s.Records {
		if r.Name == "" {
			return fmt.Errorf("records[%d]: name is required", i)
		}
		if records[r.Name] {
			return fmt.Errorf("records[%d]: duplicate name %q", i, r.Name)
		}
		records[r.Name] = true
	}

	for i, op := range s.Ops {
		if !validOps[op.Op] {
			return fmt.Errorf("ops[%d]: unknown op %q", i, op.Op)
		}
		for _, name := range op.Records {
			if !records[name] {
				return fmt.Errorf("ops[%d]: unknown record %q", i, name)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, nodes); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion, nodes map[string]bool) error {
	needsNode := func() error {
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for %s", index, a.Type)
		}
		if !nodes[a.Node] {
			return fmt.Errorf("assertions[%d]: unknown node %q", index, a.Node)
		}
		return nil
	}

	switch a.Type {
	case AssertNodeKind:
		if err := needsNode(); err != nil {
			return err
		}
		switch a.Kind {
		case "free", "bound", "group":
		default:
			return fmt.Errorf("assertions[%d]: kind must be free, bound or group, got %q", index, a.Kind)
		}
	case AssertChildCount, AssertFill:
		return needsNode()
	case AssertBound:
		if err := needsNode(); err != nil {
			return err
		}
		if a.Record == "" {
			return fmt.Errorf("assertions[%d]: record is required for bound", index)
		}
	case AssertSummaryContains, AssertBoxesContains:
		if err := needsNode(); err != nil {
			return err
		}
		if a.Contains == "" {
			return fmt.Errorf("assertions[%d]: contains is required for %s", index, a.Type)
		}
	case AssertRestored, AssertInvariants:
	case AssertNodeCount, AssertLayers:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q (want one of %s)",
			index, a.Type, strings.Join(assertionTypes(), ", "))
	}
	return nil
}

func assertionTypes() []string {
	return []string{
		AssertNodeKind, AssertChildCount, AssertBound, AssertSummaryContains,
		AssertBoxesContains, AssertFill, AssertRestored, AssertInvariants, AssertNodeCount, AssertLayers,
	}
}
