package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/erraggy/oasrouter/contract"
	"github.com/erraggy/oasrouter/logging"
	"github.com/erraggy/oasrouter/oaserrors"
)

// baseURL is the base every registry resource is added under. Registry-local
// refs ("Pet") resolve against it. No loader is registered for the scheme, so
// unknown refs fail instead of reaching the network.
const baseURL = "https://oasrouter.invalid/schemas/"

// Registry indexes a contract's component schemas and compiles validators
// that may reference them.
//
// A Registry is built once, single-threaded, during route table construction.
// The validators it returns are safe for concurrent use.
type Registry struct {
	compiler *jsonschema.Compiler
	trees    map[string]map[string]any
	compiled map[string]*Validator
	inline   int
	logger   logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger logging.Logger) *Registry {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true

	return &Registry{
		compiler: compiler,
		trees:    make(map[string]map[string]any),
		compiled: make(map[string]*Validator),
		logger:   logging.OrNop(logger),
	}
}

// FromContract registers every component schema of c.
func FromContract(c *contract.Contract, logger logging.Logger) (*Registry, error) {
	r := NewRegistry(logger)
	for _, name := range c.SchemaNames() {
		tree, ok, err := c.ComponentSchema(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if err := r.Register(name, tree); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a named schema. Its component refs are rewritten to
// registry-local keys, OAS 3.0 dialect is normalized and binary string nodes
// are patched to accept uploaded files. tree is not modified.
func (r *Registry) Register(name string, tree map[string]any) error {
	if name == "" {
		return &oaserrors.ConfigError{Option: "schema name", Message: "cannot be empty"}
	}
	if tree == nil {
		tree = map[string]any{}
	}
	rewritten, _ := RewriteRefs(tree)
	Normalize(rewritten)
	PatchBinary(rewritten)

	if err := r.addResource(resourceURL(url.PathEscape(name)), rewritten); err != nil {
		return fmt.Errorf("schema %q: %w", name, err)
	}
	r.trees[name] = rewritten
	return nil
}

// Lookup returns the registered (rewritten) tree for name.
func (r *Registry) Lookup(name string) (map[string]any, bool) {
	tree, ok := r.trees[name]
	return tree, ok
}

// Names returns the registered schema names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.trees))
	for name := range r.trees {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CompileRef compiles the validator for a component schema ref, either the
// full form ("#/components/schemas/Pet") or the registry-local key ("Pet").
//
// Returns a *oaserrors.ReferenceError if the name is not registered.
func (r *Registry) CompileRef(ref string) (*Validator, error) {
	local, name, ok := localRef(ref)
	if !ok {
		local, name = url.PathEscape(ref), ref
	}
	if _, registered := r.trees[name]; !registered {
		return nil, &oaserrors.ReferenceError{Ref: ref, Kind: "schemas", Message: "schema not registered"}
	}
	if v, ok := r.compiled[local]; ok {
		return v, nil
	}
	v, err := r.compile(resourceURL(local))
	if err != nil {
		return nil, &oaserrors.ReferenceError{Ref: ref, Kind: "schemas", Message: "failed to compile", Cause: err}
	}
	r.compiled[local] = v
	return v, nil
}

// CompileTree compiles an inline schema tree. Refs are rewritten and checked
// against the registry first; binary string nodes are patched when
// patchBinary is set. A tree that is only a component ref compiles through
// CompileRef.
func (r *Registry) CompileTree(tree map[string]any, patchBinary bool) (*Validator, error) {
	if ref, ok := tree["$ref"].(string); ok && len(tree) == 1 {
		return r.CompileRef(ref)
	}

	rewritten, names := RewriteRefs(tree)
	for _, name := range names {
		if _, ok := r.trees[name]; !ok {
			return nil, &oaserrors.ReferenceError{
				Ref:     contract.SchemaRefPrefix + name,
				Kind:    "schemas",
				Message: "schema not registered",
			}
		}
	}
	Normalize(rewritten)
	if patchBinary {
		PatchBinary(rewritten)
	}

	r.inline++
	location := resourceURL("~inline-" + strconv.Itoa(r.inline))
	if err := r.addResource(location, rewritten); err != nil {
		return nil, err
	}
	return r.compile(location)
}

// resolve follows registry-local refs from tree to the first concrete schema.
// It is used to find declared types for parameter coercion.
func (r *Registry) resolve(tree map[string]any) map[string]any {
	for hops := 0; tree != nil && hops < 16; hops++ {
		ref, ok := tree["$ref"].(string)
		if !ok {
			return tree
		}
		_, name, ok := localRef(ref)
		if !ok {
			name, _ = url.PathUnescape(ref)
		}
		tree = r.trees[name]
	}
	return tree
}

func (r *Registry) addResource(location string, tree map[string]any) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	return r.compiler.AddResource(location, bytes.NewReader(data))
}

func (r *Registry) compile(location string) (*Validator, error) {
	s, err := r.compiler.Compile(location)
	if err != nil {
		return nil, err
	}
	return &Validator{schema: s, url: location}, nil
}

func resourceURL(local string) string {
	return baseURL + local
}
