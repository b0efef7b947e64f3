package visualization_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anggasct/dsm"
	"github.com/anggasct/dsm/pkg/definition"
	"github.com/anggasct/dsm/visualization"
)

const doc = `
name: player
states:
  - name: Idle
    entry: true
    transitions:
      - {on: play, to: Playing, guard: hasDisc, action: load}
  - name: Playing
    history: {0: deep}
    transitions:
      - {on: stop, to: Idle}
      - {on: volumeUp}
    states:
      - name: Normal
        entry: true
        transitions:
          - {on: shuffle, to: Shuffle}
      - name: Shuffle
      - name: Audio
        region: 1
        entry: true
`

func parse(t *testing.T) *definition.Definition {
	t.Helper()
	def, err := definition.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Failed to parse definition: %v", err)
	}
	return def
}

func TestDOTGeneration(t *testing.T) {
	generator := visualization.NewDOTGenerator(parse(t), nil)

	dotContent, err := generator.Generate()
	if err != nil {
		t.Fatalf("Failed to generate DOT: %v", err)
	}

	expected := []string{
		`digraph "player"`,
		`"Idle" [style="rounded,filled" fillcolor=lightgreen penwidth=1 label="Idle\n(entry)"]`,
		`subgraph "cluster_Playing"`,
		`subgraph "cluster_Playing_r0"`,
		`label="region 0 (H*)"`,
		`subgraph "cluster_Playing_r1"`,
		`"Idle" -> "Playing" [label="play [hasDisc] / load" style=solid lhead="cluster_Playing"]`,
		`"Playing" -> "Idle" [label="stop" style=solid ltail="cluster_Playing"]`,
		`"Playing" -> "Playing" [label="volumeUp" style=dashed]`,
		`"Normal" -> "Shuffle"`,
	}
	for _, want := range expected {
		if !strings.Contains(dotContent, want) {
			t.Errorf("DOT content should contain %s", want)
		}
	}
	if strings.Contains(dotContent, "gold") {
		t.Error("Nothing should be highlighted without a machine")
	}

	t.Logf("Generated DOT content:\n%s", dotContent)
}

func TestDOTGeneration_Options(t *testing.T) {
	opts := visualization.DefaultDOTOptions()
	opts.ShowGuardConditions = false
	opts.ShowActions = false
	opts.ShowHistory = false
	opts.ShowInternal = false
	opts.RankDirection = "LR"

	dotContent, err := visualization.NewDOTGenerator(parse(t), nil, opts).Generate()
	if err != nil {
		t.Fatalf("Failed to generate DOT: %v", err)
	}

	if !strings.Contains(dotContent, "rankdir=LR") {
		t.Error("Expected the rank direction option")
	}
	if strings.Contains(dotContent, "hasDisc") || strings.Contains(dotContent, "load") {
		t.Error("Guards and actions should be hidden")
	}
	if strings.Contains(dotContent, "(H*)") {
		t.Error("History marks should be hidden")
	}
	if strings.Contains(dotContent, "volumeUp") {
		t.Error("Internal transitions should be hidden")
	}
}

func TestDOTGeneration_ActiveStates(t *testing.T) {
	def := parse(t)
	m, err := definition.Build(def, definition.Bindings{
		Guards: map[string]dsm.GuardFunc{
			"hasDisc": func(dsm.State, dsm.Event) bool { return true },
		},
		Actions: map[string]dsm.ActionFunc{
			"load": func(dsm.State, dsm.Event) error { return nil },
		},
	})
	if err != nil {
		t.Fatalf("Failed to build machine: %v", err)
	}
	m.Start()
	m.ProcessEvent(definition.Event("play", nil))

	dotContent, err := visualization.NewDOTGenerator(def, m).Generate()
	if err != nil {
		t.Fatalf("Failed to generate DOT: %v", err)
	}

	for _, active := range []string{"Normal", "Audio"} {
		want := `"` + active + `" [style="rounded,filled" fillcolor=gold penwidth=2`
		if !strings.Contains(dotContent, want) {
			t.Errorf("Expected %s to be highlighted", active)
		}
	}
	if !strings.Contains(dotContent, `"Idle" [style="rounded,filled" fillcolor=lightgreen penwidth=1`) {
		t.Error("Expected Idle not to be highlighted")
	}
	if !strings.Contains(dotContent, "fillcolor=gold;\n    penwidth=2;") {
		t.Error("Expected the Playing cluster to be highlighted")
	}
}

func TestDOTGeneration_Errors(t *testing.T) {
	if _, err := visualization.NewDOTGenerator(nil, nil).Generate(); err == nil {
		t.Error("Expected an error without a definition")
	}
	if _, err := visualization.NewDOTGenerator(&definition.Definition{}, nil).Generate(); err == nil {
		t.Error("Expected an error for an unnamed definition")
	}
}

func TestGenerateToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "player.dot")
	if err := visualization.NewDOTGenerator(parse(t), nil).GenerateToFile(path); err != nil {
		t.Fatalf("Failed to write DOT file: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read DOT file: %v", err)
	}
	if !strings.HasPrefix(string(data), `digraph "player" {`) {
		t.Errorf("Unexpected file content:\n%s", data)
	}
}

func TestSVGGeneration(t *testing.T) {
	if _, err := exec.LookPath("dot"); err != nil {
		t.Skip("Graphviz is not installed")
	}

	svg, err := visualization.NewSVGGenerator(parse(t), nil).Generate()
	if err != nil {
		t.Fatalf("Failed to generate SVG: %v", err)
	}
	if !strings.Contains(svg, "<svg") {
		t.Error("Expected SVG output")
	}
}
