// Package analysis summarizes syntax trees.
package analysis

import (
	"sort"
	"unicode/utf8"

	"github.com/jcs090218/tree-sitter-actionscript/pkg/sitter"
)

// Summary describes the shape of a syntax tree.
type Summary struct {
	Language   string         `json:"language" yaml:"language"`
	Root       string         `json:"root" yaml:"root"`
	Bytes      uint32         `json:"bytes" yaml:"bytes"`
	Lines      uint32         `json:"lines" yaml:"lines"`
	Nodes      int            `json:"nodes" yaml:"nodes"`             // visible nodes, including the root
	NamedNodes int            `json:"named_nodes" yaml:"named_nodes"` // named visible nodes
	MaxDepth   int            `json:"max_depth" yaml:"max_depth"`
	Extras     int            `json:"extras" yaml:"extras"`
	NodeTypes  map[string]int `json:"node_types" yaml:"node_types"` // named node type -> count
	Problems   []Problem      `json:"problems,omitempty" yaml:"problems,omitempty"`
}

// Problem is an ERROR or MISSING node.
type Problem struct {
	Kind       string `json:"kind" yaml:"kind"` // "error" or "missing"
	Type       string `json:"type" yaml:"type"` // missing node type, or ERROR
	StartByte  uint32 `json:"start_byte" yaml:"start_byte"`
	EndByte    uint32 `json:"end_byte" yaml:"end_byte"`
	StartPoint string `json:"start" yaml:"start"`
	EndPoint   string `json:"end" yaml:"end"`
	Text       string `json:"text,omitempty" yaml:"text,omitempty"`
}

// Problem kinds.
const (
	ProblemError   = "error"
	ProblemMissing = "missing"
)

// maxProblemText caps the source excerpt stored with a problem.
const maxProblemText = 40

// Summarize walks tree and counts its nodes. src is the text the tree was
// parsed from; it may be nil, in which case problems carry no text.
func Summarize(tree *sitter.Tree, src []byte) *Summary {
	root := tree.RootNode()
	s := &Summary{
		Language:  tree.Language().Name(),
		Root:      root.Type(),
		Bytes:     root.EndByte(),
		Lines:     root.EndPoint().Row + 1,
		NodeTypes: make(map[string]int),
	}

	root.Walk().Visit(func(n sitter.Node, depth int) bool {
		s.Nodes++
		if depth > s.MaxDepth {
			s.MaxDepth = depth
		}
		if n.IsExtra() {
			s.Extras++
		}
		if n.IsNamed() {
			s.NamedNodes++
			s.NodeTypes[n.Type()]++
		}
		switch {
		case n.IsMissing():
			s.Problems = append(s.Problems, problem(n, ProblemMissing, nil))
		case n.IsError():
			s.Problems = append(s.Problems, problem(n, ProblemError, src))
		}
		return true
	})

	sort.SliceStable(s.Problems, func(i, j int) bool {
		return s.Problems[i].StartByte < s.Problems[j].StartByte
	})
	return s
}

// Errors returns the number of ERROR nodes.
func (s *Summary) Errors() int { return s.count(ProblemError) }

// Missing returns the number of MISSING nodes.
func (s *Summary) Missing() int { return s.count(ProblemMissing) }

func (s *Summary) count(kind string) int {
	n := 0
	for _, p := range s.Problems {
		if p.Kind == kind {
			n++
		}
	}
	return n
}

// TopTypes returns up to limit named node types ordered by count, then name.
func (s *Summary) TopTypes(limit int) []TypeCount {
	out := make([]TypeCount, 0, len(s.NodeTypes))
	for t, c := range s.NodeTypes {
		out = append(out, TypeCount{Type: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// TypeCount pairs a node type with its number of occurrences.
type TypeCount struct {
	Type  string `json:"type" yaml:"type"`
	Count int    `json:"count" yaml:"count"`
}

func problem(n sitter.Node, kind string, src []byte) Problem {
	p := Problem{
		Kind:       kind,
		Type:       n.Type(),
		StartByte:  n.StartByte(),
		EndByte:    n.EndByte(),
		StartPoint: n.StartPoint().String(),
		EndPoint:   n.EndPoint().String(),
	}
	if src != nil {
		text := n.Content(src)
		if len(text) > maxProblemText {
			n := maxProblemText
			for n > 0 && !utf8.RuneStart(text[n]) {
				n--
			}
			text = text[:n] + "..."
		}
		p.Text = text
	}
	return p
}
