package dsm

// Option configures a Machine at construction
type Option func(*Machine)

// WithName sets the machine name, also used as the root state name
func WithName(name string) Option {
	return func(m *Machine) {
		m.name = name
	}
}

// WithID overrides the generated machine identifier
func WithID(id string) Option {
	return func(m *Machine) {
		m.id = id
	}
}

// WithRoot sets the root state. Its providers drive Setup.
func WithRoot(root State) Option {
	return func(m *Machine) {
		m.rootState = root
	}
}

// WithStore sets the value returned by Store to every state
func WithStore(store any) Option {
	return func(m *Machine) {
		m.store = store
	}
}

// WithLogger sets the log sink
func WithLogger(logger Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithLogModule sets the module name log messages are tagged with
func WithLogModule(module string) Option {
	return func(m *Machine) {
		m.module = module
	}
}

// WithObserver registers an observer
func WithObserver(observer Observer) Option {
	return func(m *Machine) {
		m.observers.AddObserver(observer)
	}
}
