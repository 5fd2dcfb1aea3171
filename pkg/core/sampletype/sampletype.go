// Package sampletype describes the sample kinds that can travel over a
// flow-graph edge: fixed-size numeric records addressable by index, and
// variable-sized structured objects carried through an encode/decode pair.
//
// A type's identity is its name. Types are registered once, process-wide or
// per registry, and referenced by name thereafter. Registration is idempotent
// for identical definitions and rejected for mismatches.
package sampletype

import (
	"sync"

	"github.com/sigflow/sigflow/pkg/core/flowerr"
)

// EncodeFunc serializes an object sample to bytes.
type EncodeFunc func(v interface{}) ([]byte, error)

// DecodeFunc is the total inverse of the matching EncodeFunc.
type DecodeFunc func(data []byte) (interface{}, error)

// T describes one sample type. Fixed types have Size > 0 and no codec;
// object types have Size == 0 and carry a codec pair.
type T struct {
	Name  string
	Size  int // bytes per sample, 0 for object types
	Align int

	encode EncodeFunc
	decode DecodeFunc
	caps   map[string]struct{}
}

// Fixed reports whether samples of this type are identical-sized records.
func (t *T) Fixed() bool { return t.Size > 0 }

// Has reports whether the type carries the named capability. Capabilities
// drive predicate-typed inputs ("any type with a json encoder").
func (t *T) Has(capability string) bool {
	_, ok := t.caps[capability]
	return ok
}

// Capabilities returns the capability names in unspecified order.
func (t *T) Capabilities() []string {
	out := make([]string, 0, len(t.caps))
	for c := range t.caps {
		out = append(out, c)
	}
	return out
}

// Encode serializes an object sample. Fixed types have no codec.
func (t *T) Encode(v interface{}) ([]byte, error) {
	if t.encode == nil {
		return nil, flowerr.New(flowerr.Generic, "type %q has no encoder", t.Name)
	}
	return t.encode(v)
}

// Decode reverses Encode.
func (t *T) Decode(data []byte) (interface{}, error) {
	if t.decode == nil {
		return nil, flowerr.New(flowerr.Generic, "type %q has no decoder", t.Name)
	}
	return t.decode(data)
}

// Registry holds registered sample types. It is safe for concurrent use and
// is append-only once graph construction begins.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*T
}

// NewRegistry returns a registry pre-populated with the builtin numeric
// primitives: real32, complex32, byte and bit.
func NewRegistry() *Registry {
	r := &Registry{types: make(map[string]*T)}
	r.RegisterFixed("real32", 4, 4)
	r.RegisterFixed("complex32", 8, 4)
	r.RegisterFixed("byte", 1, 1)
	r.RegisterFixed("bit", 1, 1)
	return r
}

// RegisterFixed registers a fixed-size record type. Re-registering an
// identical definition is a no-op; a differing one fails with TypeConflict.
func (r *Registry) RegisterFixed(name string, size, align int) (*T, error) {
	if name == "" || size <= 0 || align <= 0 {
		return nil, flowerr.New(flowerr.TypeConflict, "invalid fixed type %q (size %d, align %d)", name, size, align)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.types[name]; ok {
		if prev.Fixed() && prev.Size == size && prev.Align == align {
			return prev, nil
		}
		return nil, flowerr.New(flowerr.TypeConflict, "type %q already registered with a different definition", name)
	}
	t := &T{Name: name, Size: size, Align: align}
	r.types[name] = t
	return t, nil
}

// RegisterObject registers a variable-sized structured type with its codec
// pair and capability set. Codec identity cannot be compared, so any
// re-registration of an object name fails with TypeConflict.
func (r *Registry) RegisterObject(name string, enc EncodeFunc, dec DecodeFunc, capabilities ...string) (*T, error) {
	if name == "" || enc == nil || dec == nil {
		return nil, flowerr.New(flowerr.TypeConflict, "invalid object type %q: name and codecs are required", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[name]; ok {
		return nil, flowerr.New(flowerr.TypeConflict, "type %q already registered", name)
	}
	caps := make(map[string]struct{}, len(capabilities))
	for _, c := range capabilities {
		caps[c] = struct{}{}
	}
	t := &T{Name: name, encode: enc, decode: dec, caps: caps}
	r.types[name] = t
	return t, nil
}

// Lookup resolves a type by name.
func (r *Registry) Lookup(name string) (*T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Names returns the registered type names in unspecified order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for n := range r.types {
		out = append(out, n)
	}
	return out
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}
