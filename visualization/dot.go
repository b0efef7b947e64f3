package visualization

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/anggasct/dsm"
	"github.com/anggasct/dsm/pkg/definition"
)

// DOTGenerator generates Graphviz DOT format representations of state machines
type DOTGenerator struct {
	def     *definition.Definition
	machine *dsm.Machine
	options DOTOptions
}

// DOTOptions configures the DOT generation
type DOTOptions struct {
	ShowGuardConditions bool
	ShowActions         bool
	ShowHistory         bool
	ShowInternal        bool
	RankDirection       string // "TB", "LR", "BT", "RL"
	NodeShape           string
	TransitionStyle     string
	CompositeStateStyle string
	RegionStyle         string
	EntryColor          string
	ActiveColor         string
}

// DefaultDOTOptions returns sensible default options for DOT generation
func DefaultDOTOptions() DOTOptions {
	return DOTOptions{
		ShowGuardConditions: true,
		ShowActions:         true,
		ShowHistory:         true,
		ShowInternal:        true,
		RankDirection:       "TB",
		NodeShape:           "box",
		TransitionStyle:     "solid",
		CompositeStateStyle: "rounded",
		RegionStyle:         "dashed",
		EntryColor:          "lightgreen",
		ActiveColor:         "gold",
	}
}

// NewDOTGenerator creates a new DOT generator for def. When m is not nil,
// its active states are highlighted; m must have been built from def.
func NewDOTGenerator(def *definition.Definition, m *dsm.Machine, options ...DOTOptions) *DOTGenerator {
	opts := DefaultDOTOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	return &DOTGenerator{
		def:     def,
		machine: m,
		options: opts,
	}
}

func quote(s string) string {
	return strconv.Quote(s)
}

// Generate creates a DOT representation of the state machine
func (g *DOTGenerator) Generate() (string, error) {
	if g.def == nil {
		return "", fmt.Errorf("no definition to render")
	}
	if g.def.Name == "" {
		return "", fmt.Errorf("definition has no name")
	}

	var dot strings.Builder

	dot.WriteString(fmt.Sprintf("digraph %s {\n", quote(g.def.Name)))
	dot.WriteString(fmt.Sprintf("  rankdir=%s;\n", g.options.RankDirection))
	dot.WriteString("  compound=true;\n")
	dot.WriteString(fmt.Sprintf("  node [shape=%s];\n", g.options.NodeShape))
	dot.WriteString("  edge [fontsize=10];\n\n")

	dot.WriteString("  // States\n")
	g.generateChildren(&dot, g.def.Name, g.def.History, g.def.States, "  ")

	// the root has no node of its own, its internal transitions are not drawn
	dot.WriteString("\n  // Transitions\n")
	g.def.Walk(func(s, _ *definition.StateSpec) {
		g.generateTransitions(&dot, s.Name, s.Transitions)
	})

	dot.WriteString("}\n")
	return dot.String(), nil
}

// generateChildren emits the children of owner, one dashed cluster per
// region when there are several.
func (g *DOTGenerator) generateChildren(dot *strings.Builder, owner string, history map[int]string, children []*definition.StateSpec, indent string) {
	regions := definition.Regions(children)
	for _, idx := range regions {
		inner := indent
		if len(regions) > 1 {
			dot.WriteString(fmt.Sprintf("%ssubgraph %s {\n", indent, quote(fmt.Sprintf("cluster_%s_r%d", owner, idx))))
			dot.WriteString(fmt.Sprintf("%s  style=%s;\n", indent, g.options.RegionStyle))
			dot.WriteString(fmt.Sprintf("%s  label=%s;\n", indent, quote(g.regionLabel(idx, history))))
			inner = indent + "  "
		}
		for _, c := range children {
			if c.Region == idx {
				g.generateState(dot, c, inner)
			}
		}
		if len(regions) > 1 {
			dot.WriteString(indent + "}\n")
		}
	}
}

func (g *DOTGenerator) regionLabel(idx int, history map[int]string) string {
	label := fmt.Sprintf("region %d", idx)
	if g.options.ShowHistory {
		if h := historyMark(history[idx]); h != "" {
			label += " " + h
		}
	}
	return label
}

func historyMark(mode string) string {
	h, _ := dsm.ParseHistory(mode)
	switch h {
	case dsm.Shallow:
		return "(H)"
	case dsm.Deep:
		return "(H*)"
	}
	return ""
}

func (g *DOTGenerator) active(name string) bool {
	return g.machine != nil && definition.IsActive(g.machine, name)
}

// generateState emits a leaf as a node and a composite state as a cluster
// holding an anchor node named after the state.
func (g *DOTGenerator) generateState(dot *strings.Builder, s *definition.StateSpec, indent string) {
	label := s.Name
	if s.Entry {
		label += "\\n(entry)"
	}
	fillColor := "lightblue"
	if s.Entry {
		fillColor = g.options.EntryColor
	}
	penWidth := 1
	if g.active(s.Name) {
		fillColor = g.options.ActiveColor
		penWidth = 2
	}

	if len(s.States) == 0 {
		dot.WriteString(fmt.Sprintf("%s%s [style=\"rounded,filled\" fillcolor=%s penwidth=%d label=\"%s\"];\n",
			indent, quote(s.Name), fillColor, penWidth, label))
		return
	}

	clusterLabel := s.Name
	if g.options.ShowHistory && len(definition.Regions(s.States)) == 1 {
		if h := historyMark(s.History[s.States[0].Region]); h != "" {
			clusterLabel += " " + h
		}
	}
	dot.WriteString(fmt.Sprintf("%ssubgraph %s {\n", indent, quote("cluster_"+s.Name)))
	dot.WriteString(fmt.Sprintf("%s  style=\"%s,filled\";\n", indent, g.options.CompositeStateStyle))
	dot.WriteString(fmt.Sprintf("%s  fillcolor=%s;\n", indent, compositeFill(fillColor)))
	dot.WriteString(fmt.Sprintf("%s  penwidth=%d;\n", indent, penWidth))
	dot.WriteString(fmt.Sprintf("%s  label=\"%s\";\n", indent, strings.ReplaceAll(clusterLabel, "\"", "\\\"")))
	dot.WriteString(fmt.Sprintf("%s  %s [shape=point width=0.1 label=\"\"];\n", indent, quote(s.Name)))
	g.generateChildren(dot, s.Name, s.History, s.States, indent+"  ")
	dot.WriteString(indent + "}\n")
}

func compositeFill(leafFill string) string {
	if leafFill == "lightblue" {
		return "lightcyan"
	}
	return leafFill
}

// generateTransitions generates DOT edges for the transitions of owner
func (g *DOTGenerator) generateTransitions(dot *strings.Builder, owner string, transitions []definition.TransitionSpec) {
	for _, t := range transitions {
		if t.Internal() && !g.options.ShowInternal {
			continue
		}

		label := t.On
		if g.options.ShowGuardConditions && t.Guard != "" {
			label += fmt.Sprintf(" [%s]", t.Guard)
		}
		if g.options.ShowActions && t.Action != "" {
			label += fmt.Sprintf(" / %s", t.Action)
		}

		from, to, style := owner, t.To, g.options.TransitionStyle
		if t.Internal() {
			to, style = owner, "dashed"
		}
		attrs := []string{fmt.Sprintf("label=%s", quote(label)), fmt.Sprintf("style=%s", style)}
		if s := g.def.Find(from); s != nil && len(s.States) > 0 && to != from {
			attrs = append(attrs, fmt.Sprintf("ltail=%s", quote("cluster_"+from)))
		}
		if s := g.def.Find(to); s != nil && len(s.States) > 0 && to != from {
			attrs = append(attrs, fmt.Sprintf("lhead=%s", quote("cluster_"+to)))
		}
		dot.WriteString(fmt.Sprintf("  %s -> %s [%s];\n", quote(from), quote(to), strings.Join(attrs, " ")))
	}
}

// GenerateToFile writes the DOT representation to a file
func (g *DOTGenerator) GenerateToFile(filename string) error {
	content, err := g.Generate()
	if err != nil {
		return err
	}

	return os.WriteFile(filename, []byte(content), 0644)
}

// SVGGenerator generates SVG representations by calling Graphviz
type SVGGenerator struct {
	dotGenerator *DOTGenerator
}

// NewSVGGenerator creates a new SVG generator
func NewSVGGenerator(def *definition.Definition, m *dsm.Machine, options ...DOTOptions) *SVGGenerator {
	return &SVGGenerator{
		dotGenerator: NewDOTGenerator(def, m, options...),
	}
}

// Generate creates an SVG representation of the state machine
func (g *SVGGenerator) Generate() (string, error) {
	dotContent, err := g.dotGenerator.Generate()
	if err != nil {
		return "", err
	}

	cmd := exec.Command("dot", "-Tsvg")
	cmd.Stdin = strings.NewReader(dotContent)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to execute dot command: %w (make sure Graphviz is installed)", err)
	}

	return out.String(), nil
}

// GenerateSVG creates an SVG representation of the state machine
func (g *DOTGenerator) GenerateSVG() (string, error) {
	svgGen := &SVGGenerator{dotGenerator: g}
	return svgGen.Generate()
}
