// Package filtergraph models engine filter chains as typed nodes over
// labeled stream handles, serialized to -filter_complex syntax in a
// separate step.
package filtergraph

import (
	"fmt"
	"strings"
)

type Kind int

const (
	Video Kind = iota
	Audio
)

// Stream is an opaque handle to one labeled stream inside a graph. Source
// handles refer to demuxer streams ("0:v"); minted handles refer to filter
// outputs ("v3").
type Stream struct {
	label  string
	kind   Kind
	source bool
}

func (s Stream) Kind() Kind    { return s.kind }
func (s Stream) IsZero() bool  { return s.label == "" }
func (s Stream) Label() string { return s.label }

// MapArg renders the handle the way -map expects it: bracketed for filter
// outputs, bare for demuxer streams.
func (s Stream) MapArg() string {
	if s.source {
		return s.label
	}
	return "[" + s.label + "]"
}

type node struct {
	inputs  []Stream
	expr    string
	outputs []Stream
}

// Graph accumulates filter nodes and mints output labels. The zero value is
// ready to use.
type Graph struct {
	nodes []node
	seq   int
}

// Input returns a handle to a demuxer stream of the given input index.
func (g *Graph) Input(index int, kind Kind) Stream {
	suffix := "v"
	if kind == Audio {
		suffix = "a"
	}
	return Stream{label: fmt.Sprintf("%d:%s", index, suffix), kind: kind, source: true}
}

// Add appends one node. expr may be a comma-chained filter sequence; it is
// applied to inputs in order and one fresh label is minted per output kind.
func (g *Graph) Add(expr string, inputs []Stream, outKinds ...Kind) []Stream {
	outs := make([]Stream, len(outKinds))
	for i, k := range outKinds {
		g.seq++
		suffix := "v"
		if k == Audio {
			suffix = "a"
		}
		outs[i] = Stream{label: fmt.Sprintf("%s%d", suffix, g.seq), kind: k}
	}
	g.nodes = append(g.nodes, node{inputs: inputs, expr: expr, outputs: outs})
	return outs
}

// Chain applies expr to a single stream and returns the single rewritten
// handle of the same kind.
func (g *Graph) Chain(in Stream, expr string) Stream {
	return g.Add(expr, []Stream{in}, in.kind)[0]
}

func (g *Graph) Empty() bool { return len(g.nodes) == 0 }

// String serializes the graph: "[0:v]scale=...[v1];[v1]hue=s=0[v2]".
func (g *Graph) String() string {
	var b strings.Builder
	for i, n := range g.nodes {
		if i > 0 {
			b.WriteByte(';')
		}
		for _, in := range n.inputs {
			b.WriteString("[" + in.label + "]")
		}
		b.WriteString(n.expr)
		for _, out := range n.outputs {
			b.WriteString("[" + out.label + "]")
		}
	}
	return b.String()
}
