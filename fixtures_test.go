package dsm

import "strings"

type E1 struct{}
type E2 struct{}
type E3 struct{}

type Num struct {
	Value int
}

// journal is the store of test machines: states append "+Name" on entry and
// "-Name" on exit.
type journal struct {
	entries []string
	errs    []error
}

func (j *journal) add(entry string) {
	j.entries = append(j.entries, entry)
}

func (j *journal) reset() {
	j.entries = nil
	j.errs = nil
}

func (j *journal) String() string {
	return strings.Join(j.entries, " ")
}

type tracked struct {
	BaseState
}

func (s *tracked) journal() *journal {
	j, _ := s.Store().(*journal)
	return j
}

func (s *tracked) OnEntry() error {
	if j := s.journal(); j != nil {
		j.add("+" + s.Name())
	}
	return nil
}

func (s *tracked) OnExit() error {
	if j := s.journal(); j != nil {
		j.add("-" + s.Name())
	}
	return nil
}

func (s *tracked) OnError(err error) {
	if j := s.journal(); j != nil {
		j.errs = append(j.errs, err)
	}
}

type testRoot struct{ tracked }

type S0 struct{ tracked }
type S1 struct{ tracked }
type S2 struct{ tracked }
type S3 struct{ tracked }
type S4 struct{ tracked }
type S5 struct{ tracked }

func newTestMachine(opts ...Option) (*Machine, *journal) {
	j := &journal{}
	all := append([]Option{WithRoot(&testRoot{}), WithStore(j)}, opts...)
	return NewMachine(all...), j
}

// mustAdd adds states and transitions and panics on the first failure,
// keeping test bodies focused on behavior.
func mustAdd(m *Machine, items ...any) {
	for _, item := range items {
		var err error
		switch v := item.(type) {
		case StateDef:
			err = m.AddState(v.State, v.Options...)
		case TransitionDef:
			err = m.AddTransition(v)
		default:
			panic("unsupported item")
		}
		if err != nil {
			panic(err)
		}
	}
}
