package dsm

import (
	"reflect"
	"strings"
	"sync"
)

// Kind identifies a state or event type. Kinds are stable for the lifetime of
// the process and comparable with ==.
type Kind uint32

// NoKind is the kind of nil events and unknown lookups.
const NoKind Kind = 0

type kindRegistry struct {
	mutex  sync.RWMutex
	byType map[reflect.Type]Kind
	byName map[string]Kind
	names  []string
}

var kinds = &kindRegistry{
	byType: make(map[reflect.Type]Kind),
	byName: make(map[string]Kind),
	names:  []string{"none"},
}

func (r *kindRegistry) forType(t reflect.Type) Kind {
	r.mutex.RLock()
	k, ok := r.byType[t]
	r.mutex.RUnlock()
	if ok {
		return k
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if k, ok := r.byType[t]; ok {
		return k
	}
	k = Kind(len(r.names))
	r.names = append(r.names, typeName(t))
	r.byType[t] = k
	return k
}

func (r *kindRegistry) forName(name string) Kind {
	r.mutex.RLock()
	k, ok := r.byName[name]
	r.mutex.RUnlock()
	if ok {
		return k
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if k, ok := r.byName[name]; ok {
		return k
	}
	k = Kind(len(r.names))
	r.names = append(r.names, name)
	r.byName[name] = k
	return k
}

func (r *kindRegistry) name(k Kind) string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if int(k) < len(r.names) {
		return r.names[k]
	}
	return "unknown"
}

func typeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.String()
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// KindOf returns the kind of the Go type T. *S and S are distinct kinds.
func KindOf[T any]() Kind {
	return kinds.forType(reflect.TypeOf((*T)(nil)).Elem())
}

// NamedKind returns the kind registered for a runtime name, registering it
// on first use.
func NamedKind(name string) Kind {
	return kinds.forName(name)
}

// KindFor returns the kind of a value. Values implementing KindedEvent pick
// their own kind, everything else is identified by its dynamic type.
func KindFor(v any) Kind {
	switch e := v.(type) {
	case nil:
		return NoKind
	case KindedEvent:
		return e.EventKind()
	case State:
		if k := e.base().kind; k != NoKind {
			return k
		}
	}
	return kinds.forType(reflect.TypeOf(v))
}

// String returns the registered name of the kind.
func (k Kind) String() string {
	return kinds.name(k)
}
