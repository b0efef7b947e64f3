// Package definition describes state machines in YAML (or JSON) and builds
// dsm machines from them.
package definition

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/anggasct/dsm"
)

// Definition is the document root. Name becomes the machine name.
type Definition struct {
	Name        string           `yaml:"name" json:"name"`
	Description string           `yaml:"description,omitempty" json:"description,omitempty"`
	Store       map[string]any   `yaml:"store,omitempty" json:"store,omitempty"`
	History     map[int]string   `yaml:"history,omitempty" json:"history,omitempty"`
	States      []*StateSpec     `yaml:"states" json:"states"`
	Transitions []TransitionSpec `yaml:"transitions,omitempty" json:"transitions,omitempty"`
}

// StateSpec declares one state and its children
type StateSpec struct {
	Name        string           `yaml:"name" json:"name"`
	Entry       bool             `yaml:"entry,omitempty" json:"entry,omitempty"`
	Region      int              `yaml:"region,omitempty" json:"region,omitempty"`
	History     map[int]string   `yaml:"history,omitempty" json:"history,omitempty"`
	OnEntry     string           `yaml:"onEntry,omitempty" json:"onEntry,omitempty"`
	OnExit      string           `yaml:"onExit,omitempty" json:"onExit,omitempty"`
	States      []*StateSpec     `yaml:"states,omitempty" json:"states,omitempty"`
	Transitions []TransitionSpec `yaml:"transitions,omitempty" json:"transitions,omitempty"`
}

// TransitionSpec declares a transition out of the enclosing state. An empty
// To declares an internal transition.
type TransitionSpec struct {
	On     string `yaml:"on" json:"on"`
	To     string `yaml:"to,omitempty" json:"to,omitempty"`
	Guard  string `yaml:"guard,omitempty" json:"guard,omitempty"`
	Action string `yaml:"action,omitempty" json:"action,omitempty"`
}

// Internal reports whether t keeps the configuration unchanged
func (t TransitionSpec) Internal() bool {
	return t.To == ""
}

// Parse decodes a YAML document. Unknown fields are rejected.
func Parse(data []byte) (*Definition, error) {
	return Load(bytes.NewReader(data))
}

// Load decodes a YAML document from r
func Load(r io.Reader) (*Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse definition: empty document")
		}
		return nil, fmt.Errorf("failed to parse definition: %w", err)
	}
	return &def, nil
}

// LoadFile reads a definition from path. Files ending in .json are decoded
// as JSON, everything else as YAML.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		var def Definition
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		return &def, nil
	}

	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return def, nil
}

// Marshal encodes the definition back to YAML
func (d *Definition) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

// Walk calls fn for every state, parents before children. parent is nil for
// top-level states.
func (d *Definition) Walk(fn func(s, parent *StateSpec)) {
	var walk func(states []*StateSpec, parent *StateSpec)
	walk = func(states []*StateSpec, parent *StateSpec) {
		for _, s := range states {
			fn(s, parent)
			walk(s.States, s)
		}
	}
	walk(d.States, nil)
}

// Find returns the state called name, nil if absent
func (d *Definition) Find(name string) *StateSpec {
	var found *StateSpec
	d.Walk(func(s, _ *StateSpec) {
		if found == nil && s.Name == name {
			found = s
		}
	})
	return found
}

// Regions returns the region indexes used by children, sorted
func Regions(children []*StateSpec) []int {
	var out []int
	for _, c := range children {
		if !slices.Contains(out, c.Region) {
			out = append(out, c.Region)
		}
	}
	slices.Sort(out)
	return out
}

// Validate checks the document for mistakes the engine would only report
// while building: missing or duplicate names, unknown targets, several entry
// states in a region, history on missing regions and unknown history modes.
// All problems are returned joined.
func (d *Definition) Validate() error {
	var errs []error
	if d.Name == "" {
		errs = append(errs, errors.New("definition has no name"))
	}

	names := map[string]bool{}
	d.Walk(func(s, _ *StateSpec) {
		switch {
		case s.Name == "":
			errs = append(errs, errors.New("state without a name"))
		case names[s.Name] || s.Name == d.Name:
			errs = append(errs, fmt.Errorf("state %q: duplicate name", s.Name))
		}
		names[s.Name] = true
	})

	checkScope := func(owner string, children []*StateSpec, history map[int]string, transitions []TransitionSpec) {
		entries := map[int]string{}
		for _, c := range children {
			if c.Region < 0 {
				errs = append(errs, fmt.Errorf("state %q: negative region %d", c.Name, c.Region))
			}
			if !c.Entry {
				continue
			}
			if prev, ok := entries[c.Region]; ok {
				errs = append(errs, fmt.Errorf("state %q: region %d already has entry state %q", owner, c.Region, prev))
				continue
			}
			entries[c.Region] = c.Name
		}

		regions := Regions(children)
		for idx, mode := range history {
			if _, err := dsm.ParseHistory(mode); err != nil {
				errs = append(errs, fmt.Errorf("state %q: %w", owner, err))
			}
			if !slices.Contains(regions, idx) {
				errs = append(errs, fmt.Errorf("state %q: history set on missing region %d", owner, idx))
			}
		}

		seen := map[string]bool{}
		for _, t := range transitions {
			if t.On == "" {
				errs = append(errs, fmt.Errorf("state %q: transition without an event", owner))
				continue
			}
			if seen[t.On] {
				errs = append(errs, fmt.Errorf("state %q: duplicate transition on %q", owner, t.On))
			}
			seen[t.On] = true
			if !t.Internal() && !names[t.To] {
				errs = append(errs, fmt.Errorf("state %q: transition on %q targets unknown state %q", owner, t.On, t.To))
			}
		}
	}

	checkScope(d.Name, d.States, d.History, d.Transitions)
	d.Walk(func(s, _ *StateSpec) {
		checkScope(s.Name, s.States, s.History, s.Transitions)
	})
	return errors.Join(errs...)
}
