// Package loader reads program documents: the JSON form of a set of modules
// with their imports, runtime stubs and function bodies. A document is
// validated against an embedded JSON schema before it is decoded into
// syntax trees and a symbol table.
package loader

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/mod/semver"

	"github.com/qgl2/qgl2c/core/ast"
	"github.com/qgl2/qgl2c/runtime/symtab"
)

// SupportedMajor is the document major version this loader reads.
const SupportedMajor = "v1"

// maxDocumentSize bounds how much input is read.
const maxDocumentSize = 16 * 1024 * 1024

const schemaURL = "qgl2c://program.json"

//go:embed schema.json
var schemaJSON string

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// Program is a loaded document.
type Program struct {
	Version string
	Table   *symtab.Table

	funcs   []*ast.FuncDef
	modules map[string]string // source file -> module
}

// Functions returns every function in document order.
func (p *Program) Functions() []*ast.FuncDef {
	return p.funcs
}

// Module returns the module a source file belongs to.
func (p *Program) Module(file string) (string, bool) {
	m, ok := p.modules[file]
	return m, ok
}

// Resolve looks name up from a source file or module name. It implements
// planner.Resolver.
func (p *Program) Resolve(context, name string) (*symtab.Definition, error) {
	module := context
	if m, ok := p.modules[context]; ok {
		module = m
	}
	return p.Table.Resolve(module, name)
}

// SchemaError reports a document that does not match the schema.
type SchemaError struct {
	Problems []string // "instance location: message", one per failed keyword
	Err      error
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("invalid program document")
	for _, p := range e.Problems {
		b.WriteString("\n  ")
		b.WriteString(p)
	}
	return b.String()
}

func (e *SchemaError) Unwrap() error { return e.Err }

// LoadFile loads the document at path.
func LoadFile(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	prog, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

// Load reads, validates and decodes a document.
func Load(r io.Reader) (*Program, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("document exceeds maximum size %d", maxDocumentSize)
	}

	if err := Validate(data); err != nil {
		return nil, err
	}

	var doc document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	if err := checkVersion(doc.Version); err != nil {
		return nil, err
	}
	return build(&doc)
}

// Validate checks raw document bytes against the schema.
func Validate(data []byte) error {
	schema, err := programSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return &SchemaError{Problems: []string{err.Error()}, Err: err}
	}

	if err := schema.Validate(v); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		return &SchemaError{Problems: problems(ve), Err: ve}
	}
	return nil
}

func problems(ve *jsonschema.ValidationError) []string {
	var out []string
	for _, e := range ve.BasicOutput().Errors {
		if e.Error == "" || strings.HasPrefix(e.Error, "doesn't validate with") {
			continue
		}
		loc := e.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		out = append(out, loc+": "+e.Error)
	}
	if len(out) == 0 {
		out = append(out, ve.Error())
	}
	return out
}

func programSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true
		if compiler.Formats == nil {
			compiler.Formats = make(map[string]func(interface{}) bool)
		}
		compiler.Formats["semver"] = isSemver
		compiler.LoadURL = func(url string) (io.ReadCloser, error) {
			return nil, fmt.Errorf("external schema reference not allowed: %s", url)
		}
		if err := compiler.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// isSemver accepts versions with or without the leading "v".
func isSemver(v any) bool {
	s, ok := v.(string)
	if !ok {
		return true // Type validation happens separately
	}
	return semver.IsValid(canonicalVersion(s))
}

func canonicalVersion(s string) string {
	if !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	return s
}

func checkVersion(version string) error {
	if major := semver.Major(canonicalVersion(version)); major != SupportedMajor {
		return fmt.Errorf("unsupported document version %s (loader reads %s.x)", version, SupportedMajor)
	}
	return nil
}

// ========== Document Model ==========

type document struct {
	Version string      `json:"version"`
	Modules []moduleDoc `json:"modules"`
}

type moduleDoc struct {
	Name      string        `json:"name"`
	File      string        `json:"file"`
	Imports   []importDoc   `json:"imports"`
	Stubs     []stubDoc     `json:"stubs"`
	Functions []functionDoc `json:"functions"`
}

type importDoc struct {
	Module string `json:"module"`
	Symbol string `json:"symbol"`
	As     string `json:"as"`
}

type stubDoc struct {
	Name    string     `json:"name"`
	Params  []paramDoc `json:"params"`
	Returns string     `json:"returns"`
	Import  struct {
		Module string `json:"module"`
		Symbol string `json:"symbol"`
	} `json:"import"`
}

type functionDoc struct {
	Name    string     `json:"name"`
	Line    int        `json:"line"`
	Col     int        `json:"col"`
	Decl    bool       `json:"decl"`
	Returns string     `json:"returns"`
	Params  []paramDoc `json:"params"`
	Body    []*stmtDoc `json:"body"`
}

type paramDoc struct {
	Name       string   `json:"name"`
	Annotation string   `json:"annotation"`
	Default    *exprDoc `json:"default"`
}

type stmtDoc struct {
	Kind     string     `json:"kind"`
	Line     int        `json:"line"`
	Col      int        `json:"col"`
	Targets  []*exprDoc `json:"targets"`
	Value    *exprDoc   `json:"value"`
	Target   *exprDoc   `json:"target"`
	Iter     *exprDoc   `json:"iter"`
	Test     *exprDoc   `json:"test"`
	Channels []string   `json:"channels"`
	Body     []*stmtDoc `json:"body"`
	Else     []*stmtDoc `json:"else"`
}

type exprDoc struct {
	Kind     string          `json:"kind"`
	Line     int             `json:"line"`
	Col      int             `json:"col"`
	ID       string          `json:"id"`
	Value    json.RawMessage `json:"value"`
	Func     *exprDoc        `json:"func"`
	Args     []*exprDoc      `json:"args"`
	Keywords []keywordDoc    `json:"keywords"`
	Returns  string          `json:"returns"`
	Elts     []*exprDoc      `json:"elts"`
	Op       string          `json:"op"`
	Left     *exprDoc        `json:"left"`
	Right    *exprDoc        `json:"right"`
	Base     *exprDoc        `json:"base"`
	Index    *exprDoc        `json:"index"`
	Slice    bool            `json:"slice"`
	Lower    *exprDoc        `json:"lower"`
	Upper    *exprDoc        `json:"upper"`
}

type keywordDoc struct {
	Name  string   `json:"name"`
	Value *exprDoc `json:"value"`
}

// ========== Building ==========

func build(doc *document) (*Program, error) {
	prog := &Program{
		Version: doc.Version,
		Table:   symtab.NewTable(),
		modules: make(map[string]string),
	}

	for _, m := range doc.Modules {
		if _, dup := prog.Table.Lookup(m.Name); dup {
			return nil, fmt.Errorf("module %s defined twice", m.Name)
		}
		ns := prog.Table.Namespace(m.Name)
		file := m.File
		if file == "" {
			file = m.Name
		}
		prog.modules[file] = m.Name

		for _, imp := range m.Imports {
			var err error
			if imp.Symbol != "" {
				alias := imp.As
				if alias == "" {
					alias = imp.Symbol
				}
				err = ns.AddFromAs(imp.Module, imp.Symbol, alias)
			} else {
				alias := imp.As
				if alias == "" {
					alias = imp.Module
				}
				err = ns.AddImportAs(imp.Module, alias)
			}
			if err != nil {
				return nil, fmt.Errorf("module %s: %w", m.Name, err)
			}
		}

		b := &builder{file: file}
		for _, s := range m.Stubs {
			params, err := b.params(s.Params)
			if err != nil {
				return nil, fmt.Errorf("module %s: stub %s: %w", m.Name, s.Name, err)
			}
			stub := symtab.NewStub(m.Name, s.Name, params, ast.ParseReturnKind(s.Returns),
				symtab.Import{Module: s.Import.Module, Symbol: s.Import.Symbol})
			if err := ns.AddLocal(stub); err != nil {
				return nil, fmt.Errorf("module %s: %w", m.Name, err)
			}
		}

		for _, f := range m.Functions {
			fn, err := b.function(f)
			if err != nil {
				return nil, fmt.Errorf("module %s: function %s: %w", m.Name, f.Name, err)
			}
			if err := ns.AddLocal(symtab.NewFunction(m.Name, fn)); err != nil {
				return nil, fmt.Errorf("module %s: %w", m.Name, err)
			}
			prog.funcs = append(prog.funcs, fn)
		}
	}

	if err := prog.Table.Validate(); err != nil {
		return nil, err
	}
	return prog, nil
}

// builder converts document nodes of one module into syntax trees.
type builder struct {
	file string
}

func (b *builder) pos(line, col int) ast.Position {
	return ast.Position{File: b.file, Line: line, Column: col}
}

func (b *builder) function(f functionDoc) (*ast.FuncDef, error) {
	params, err := b.params(f.Params)
	if err != nil {
		return nil, err
	}
	body, err := b.block(f.Body)
	if err != nil {
		return nil, err
	}
	return &ast.FuncDef{
		Pos:     b.pos(f.Line, f.Col),
		Name:    f.Name,
		Params:  params,
		Body:    body,
		Decl:    f.Decl,
		Returns: ast.ParseReturnKind(f.Returns),
	}, nil
}

func (b *builder) params(docs []paramDoc) ([]ast.Param, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	out := make([]ast.Param, len(docs))
	seen := make(map[string]bool, len(docs))
	for i, p := range docs {
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate parameter %s", p.Name)
		}
		seen[p.Name] = true
		def, err := b.optExpr(p.Default)
		if err != nil {
			return nil, err
		}
		out[i] = ast.Param{Name: p.Name, Annotation: p.Annotation, Default: def}
	}
	return out, nil
}

func (b *builder) block(docs []*stmtDoc) ([]ast.Stmt, error) {
	out := make([]ast.Stmt, 0, len(docs))
	for _, d := range docs {
		s, err := b.stmt(d)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (b *builder) stmt(d *stmtDoc) (ast.Stmt, error) {
	pos := b.pos(d.Line, d.Col)
	switch d.Kind {
	case "assign":
		targets, err := b.exprs(d.Targets)
		if err != nil {
			return nil, err
		}
		value, err := b.expr(d.Value)
		if err != nil {
			return nil, err
		}
		return &ast.Assign{Pos: pos, Targets: targets, Value: value}, nil

	case "for":
		target, err := b.expr(d.Target)
		if err != nil {
			return nil, err
		}
		iter, err := b.expr(d.Iter)
		if err != nil {
			return nil, err
		}
		body, err := b.block(d.Body)
		if err != nil {
			return nil, err
		}
		orelse, err := b.optBlock(d.Else)
		if err != nil {
			return nil, err
		}
		return &ast.For{Pos: pos, Target: target, Iter: iter, Body: body, Else: orelse}, nil

	case "if":
		test, err := b.expr(d.Test)
		if err != nil {
			return nil, err
		}
		body, err := b.block(d.Body)
		if err != nil {
			return nil, err
		}
		orelse, err := b.optBlock(d.Else)
		if err != nil {
			return nil, err
		}
		return &ast.If{Pos: pos, Test: test, Body: body, Else: orelse}, nil

	case "concur":
		body, err := b.block(d.Body)
		if err != nil {
			return nil, err
		}
		return &ast.Concur{Pos: pos, Body: body}, nil

	case "seq":
		body, err := b.block(d.Body)
		if err != nil {
			return nil, err
		}
		return &ast.Seq{Pos: pos, Channels: d.Channels, Body: body}, nil

	case "expr":
		x, err := b.expr(d.Value)
		if err != nil {
			return nil, err
		}
		return &ast.ExprStmt{Pos: pos, X: x}, nil

	case "return":
		value, err := b.optExpr(d.Value)
		if err != nil {
			return nil, err
		}
		return &ast.Return{Pos: pos, Value: value}, nil
	}
	return nil, fmt.Errorf("%s: unknown statement kind %q", pos, d.Kind)
}

func (b *builder) optBlock(docs []*stmtDoc) ([]ast.Stmt, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	return b.block(docs)
}

func (b *builder) exprs(docs []*exprDoc) ([]ast.Expr, error) {
	out := make([]ast.Expr, len(docs))
	for i, d := range docs {
		e, err := b.expr(d)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (b *builder) optExpr(d *exprDoc) (ast.Expr, error) {
	if d == nil {
		return nil, nil
	}
	return b.expr(d)
}

func (b *builder) expr(d *exprDoc) (ast.Expr, error) {
	if d == nil {
		return nil, errors.New("missing expression")
	}
	pos := b.pos(d.Line, d.Col)
	switch d.Kind {
	case "name":
		return &ast.Name{Pos: pos, ID: d.ID}, nil

	case "literal":
		v, err := literalValue(d.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pos, err)
		}
		return &ast.Literal{Pos: pos, Value: v}, nil

	case "call":
		fn, err := b.expr(d.Func)
		if err != nil {
			return nil, err
		}
		args, err := b.exprs(d.Args)
		if err != nil {
			return nil, err
		}
		var kws []ast.Keyword
		for _, kw := range d.Keywords {
			v, err := b.expr(kw.Value)
			if err != nil {
				return nil, err
			}
			kws = append(kws, ast.Keyword{Name: kw.Name, Value: v})
		}
		return &ast.Call{Pos: pos, Func: fn, Args: args, Keywords: kws, Return: ast.ParseReturnKind(d.Returns)}, nil

	case "tuple", "list":
		elts, err := b.exprs(d.Elts)
		if err != nil {
			return nil, err
		}
		if d.Kind == "tuple" {
			return &ast.Tuple{Pos: pos, Elts: elts}, nil
		}
		return &ast.List{Pos: pos, Elts: elts}, nil

	case "binop":
		left, err := b.expr(d.Left)
		if err != nil {
			return nil, err
		}
		right, err := b.expr(d.Right)
		if err != nil {
			return nil, err
		}
		return &ast.BinOp{Pos: pos, Op: d.Op, Left: left, Right: right}, nil

	case "subscript":
		base, err := b.expr(d.Base)
		if err != nil {
			return nil, err
		}
		sub := &ast.Subscript{Pos: pos, Value: base, Slice: d.Slice}
		if d.Slice {
			if sub.Lower, err = b.optExpr(d.Lower); err != nil {
				return nil, err
			}
			if sub.Upper, err = b.optExpr(d.Upper); err != nil {
				return nil, err
			}
		} else if sub.Index, err = b.expr(d.Index); err != nil {
			return nil, fmt.Errorf("%s: subscript index: %w", pos, err)
		}
		return sub, nil
	}
	return nil, fmt.Errorf("%s: unknown expression kind %q", pos, d.Kind)
}

// literalValue decodes a literal into int64, float64, string, bool or nil.
func literalValue(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("literal: %w", err)
	}
	switch x := v.(type) {
	case json.Number:
		s := x.String()
		if strings.ContainsAny(s, ".eE") {
			return strconv.ParseFloat(s, 64)
		}
		return strconv.ParseInt(s, 10, 64)
	case string, bool, nil:
		return x, nil
	}
	return nil, fmt.Errorf("unsupported literal %s", raw)
}
