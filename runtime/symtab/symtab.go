// Package symtab resolves call targets across modules.
//
// Every module has a Namespace holding its local definitions, its
// `from m import s as a` bindings and its `import m as a` bindings. Lookup
// follows those bindings from module to module. A Table is populated once and
// then only read, so one table can serve any number of concurrent runs.
package symtab

import (
	"fmt"
	"sort"
	"strings"

	"github.com/qgl2/qgl2c/core/ast"
	"github.com/qgl2/qgl2c/core/invariant"
)

// Import names the runtime symbol a generated program must import to call a
// definition.
type Import struct {
	Module string
	Symbol string
}

// Definition is something a call can resolve to: a compiled function or a
// stub standing for an operation implemented by the runtime library.
type Definition struct {
	Name       string
	Module     string
	Params     []ast.Param
	ReturnKind ast.ReturnKind
	Stub       bool
	Import     Import       // Runtime import (stubs only)
	Func       *ast.FuncDef // nil for stubs

	procedure bool
}

// NewFunction wraps a function definition from module. The procedure
// classification is computed once here.
func NewFunction(module string, fn *ast.FuncDef) *Definition {
	invariant.NotNil(fn, "fn")
	return &Definition{
		Name:       fn.Name,
		Module:     module,
		Params:     fn.Params,
		ReturnKind: fn.Returns,
		Func:       fn,
		procedure:  fn.Decl && !ast.ContainsReturn(fn.Body),
	}
}

// NewStub creates a stub definition. An empty imp.Symbol defaults to name and
// an empty imp.Module to module.
func NewStub(module, name string, params []ast.Param, ret ast.ReturnKind, imp Import) *Definition {
	invariant.Precondition(name != "", "stub name must not be empty")
	if imp.Symbol == "" {
		imp.Symbol = name
	}
	if imp.Module == "" {
		imp.Module = module
	}
	return &Definition{
		Name:       name,
		Module:     module,
		Params:     params,
		ReturnKind: ret,
		Stub:       true,
		Import:     imp,
	}
}

// IsProcedure reports whether the definition is inlinable: declared as such
// and free of return statements anywhere in its body.
func (d *Definition) IsProcedure() bool {
	return d.procedure
}

// ========== Namespaces ==========

type fromRef struct {
	module string
	symbol string
}

// Namespace is the symbol table of one module.
type Namespace struct {
	Module string

	locals   map[string]*Definition
	fromAs   map[string]fromRef
	importAs map[string]string
	names    map[string]string // every bound name -> binding kind
}

func newNamespace(module string) *Namespace {
	return &Namespace{
		Module:   module,
		locals:   make(map[string]*Definition),
		fromAs:   make(map[string]fromRef),
		importAs: make(map[string]string),
		names:    make(map[string]string),
	}
}

// DuplicateError is returned when a name is bound twice in one namespace.
type DuplicateError struct {
	Module string
	Name   string
	Kind   string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("symbol [%s] multiply defined (%s) in namespace [%s]", e.Name, e.Kind, e.Module)
}

func (ns *Namespace) checkDup(name, kind string) error {
	if _, exists := ns.names[name]; exists {
		return &DuplicateError{Module: ns.Module, Name: name, Kind: kind}
	}
	ns.names[name] = kind
	return nil
}

// AddLocal binds a definition made in this module.
func (ns *Namespace) AddLocal(def *Definition) error {
	invariant.NotNil(def, "def")
	if err := ns.checkDup(def.Name, "local"); err != nil {
		return err
	}
	ns.locals[def.Name] = def
	return nil
}

// AddFromAs records `from module import symbol as alias`. An empty alias
// binds symbol itself.
func (ns *Namespace) AddFromAs(module, symbol, alias string) error {
	if alias == "" {
		alias = symbol
	}
	if err := ns.checkDup(alias, "from-as"); err != nil {
		return err
	}
	ns.fromAs[alias] = fromRef{module: module, symbol: symbol}
	return nil
}

// AddImportAs records `import module as alias`. An empty alias binds the
// module's own dotted name.
func (ns *Namespace) AddImportAs(module, alias string) error {
	if alias == "" {
		alias = module
	}
	if err := ns.checkDup(alias, "import-as"); err != nil {
		return err
	}
	ns.importAs[alias] = module
	return nil
}

// Names returns every local definition name, sorted.
func (ns *Namespace) Names() []string {
	names := make([]string, 0, len(ns.locals))
	for name := range ns.locals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ========== Table ==========

// Table holds the namespaces of every loaded module.
type Table struct {
	namespaces map[string]*Namespace
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{namespaces: make(map[string]*Namespace)}
}

// Namespace returns the namespace for module, creating it on first use.
func (t *Table) Namespace(module string) *Namespace {
	ns, ok := t.namespaces[module]
	if !ok {
		ns = newNamespace(module)
		t.namespaces[module] = ns
	}
	return ns
}

// Lookup returns the namespace for module without creating it.
func (t *Table) Lookup(module string) (*Namespace, bool) {
	ns, ok := t.namespaces[module]
	return ns, ok
}

// Modules returns the loaded module names, sorted.
func (t *Table) Modules() []string {
	mods := make([]string, 0, len(t.namespaces))
	for m := range t.namespaces {
		mods = append(mods, m)
	}
	sort.Strings(mods)
	return mods
}

// Validate checks that every import refers to a loaded module.
func (t *Table) Validate() error {
	for _, mod := range t.Modules() {
		ns := t.namespaces[mod]
		for _, alias := range sortedKeys(ns.fromAs) {
			ref := ns.fromAs[alias]
			if _, ok := t.namespaces[ref.module]; !ok {
				return fmt.Errorf("module %s: no module found for [%s]", mod, ref.module)
			}
		}
		for _, alias := range sortedKeys(ns.importAs) {
			if _, ok := t.namespaces[ns.importAs[alias]]; !ok {
				return fmt.Errorf("module %s: no module found for [%s]", mod, ns.importAs[alias])
			}
		}
	}
	return nil
}

// UnknownModuleError is returned when resolution reaches a module that was
// never loaded.
type UnknownModuleError struct {
	Module string
}

func (e *UnknownModuleError) Error() string {
	return fmt.Sprintf("cannot find namespace for [%s]", e.Module)
}

// CycleError is returned when following import bindings leads back to a
// binding already on the lookup path.
type CycleError struct {
	Symbol string   // The symbol being resolved
	Cycle  []string // The binding path, e.g. ["a.x", "b.x", "a.x"]
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("import cycle while resolving [%s]: %s", e.Symbol, strings.Join(e.Cycle, " -> "))
}

// Resolve looks name up in module. It returns (nil, nil) when the name is not
// bound, *UnknownModuleError when a binding points at a missing module and
// *CycleError when the bindings loop.
func (t *Table) Resolve(module, name string) (*Definition, error) {
	return t.resolve(module, name, name, nil, make(map[string]bool))
}

func (t *Table) resolve(module, name, origin string, path []string, visiting map[string]bool) (*Definition, error) {
	key := module + "." + name
	if visiting[key] {
		cycleStart := 0
		for i, p := range path {
			if p == key {
				cycleStart = i
				break
			}
		}
		cycle := append(append([]string{}, path[cycleStart:]...), key)
		return nil, &CycleError{Symbol: origin, Cycle: cycle}
	}

	ns, ok := t.namespaces[module]
	if !ok {
		return nil, &UnknownModuleError{Module: module}
	}

	visiting[key] = true
	path = append(path, key)

	if def, ok := ns.locals[name]; ok {
		return def, nil
	}
	if ref, ok := ns.fromAs[name]; ok {
		return t.resolve(ref.module, ref.symbol, origin, path, visiting)
	}

	// Dotted reference through an `import m as a` binding; try every prefix.
	parts := strings.Split(name, ".")
	for i := 1; i < len(parts); i++ {
		prefix := strings.Join(parts[:i], ".")
		if target, ok := ns.importAs[prefix]; ok {
			return t.resolve(target, strings.Join(parts[i:], "."), origin, path, visiting)
		}
	}
	return nil, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
