package compiler

import (
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/scanner"
	"go/token"
	"go/types"
	"strings"
)

// ---------------------------------------------------------------------------
// In-memory type check of generated source
// ---------------------------------------------------------------------------

// CheckError is a Go compile error found in generated source, attributed to
// the top-level declaration that contains it.
type CheckError struct {
	Line    int
	Column  int
	Decl    string // enclosing top-level declaration, "<package>" if none
	Message string
}

// Checker parses and type-checks generated source in memory, before it is
// written anywhere. The default importer resolves standard library packages
// only, so a tagset whose initializers pull in third-party packages can
// report import errors here that the real build would not.
type Checker struct {
	fset     *token.FileSet
	filename string
}

// NewChecker creates a checker; filename is used in error positions only.
func NewChecker(filename string) *Checker {
	return &Checker{filename: filename}
}

// Check type-checks generated source in memory and reports every parse and
// type error found.
func Check(src []byte, filename string) []CheckError {
	return NewChecker(filename).Check(src)
}

// Check reports parse and type errors in src. An empty result means the
// source compiles as a standalone package.
func (c *Checker) Check(src []byte) []CheckError {
	c.fset = token.NewFileSet()

	file, err := parser.ParseFile(c.fset, c.filename, src, parser.AllErrors)
	if err != nil {
		return c.parseErrors(err)
	}

	decls := c.buildDeclMap(file)

	var errs []CheckError
	conf := types.Config{
		Importer: importer.Default(),
		Error: func(err error) {
			typeErr, ok := err.(types.Error)
			if !ok {
				return
			}
			pos := c.fset.Position(typeErr.Pos)
			decl := decls[pos.Line]
			if decl == "" {
				decl = "<package>"
			}
			errs = append(errs, CheckError{
				Line:    pos.Line,
				Column:  pos.Column,
				Decl:    decl,
				Message: typeErr.Msg,
			})
		},
	}

	info := &types.Info{
		Types: make(map[ast.Expr]types.TypeAndValue),
		Defs:  make(map[*ast.Ident]types.Object),
		Uses:  make(map[*ast.Ident]types.Object),
	}
	_, _ = conf.Check(file.Name.Name, c.fset, []*ast.File{file}, info)

	return errs
}

func (c *Checker) parseErrors(err error) []CheckError {
	if list, ok := err.(scanner.ErrorList); ok {
		errs := make([]CheckError, 0, len(list))
		for _, e := range list {
			errs = append(errs, CheckError{
				Line:    e.Pos.Line,
				Column:  e.Pos.Column,
				Decl:    "<package>",
				Message: e.Msg,
			})
		}
		return errs
	}
	return []CheckError{{Line: 1, Column: 1, Decl: "<package>", Message: err.Error()}}
}

// buildDeclMap maps each source line to the top-level declaration covering
// it, so type errors inside a table literal or a method body name the
// declaration rather than a bare position.
func (c *Checker) buildDeclMap(file *ast.File) map[int]string {
	decls := make(map[int]string)
	for _, d := range file.Decls {
		name := declName(d)
		if name == "" {
			continue
		}
		start := c.fset.Position(d.Pos()).Line
		end := c.fset.Position(d.End()).Line
		for line := start; line <= end; line++ {
			decls[line] = name
		}
	}
	return decls
}

func declName(d ast.Decl) string {
	switch d := d.(type) {
	case *ast.FuncDecl:
		if d.Recv != nil && len(d.Recv.List) > 0 {
			if recv := receiverType(d.Recv.List[0].Type); recv != "" {
				return recv + "." + d.Name.Name
			}
		}
		return d.Name.Name
	case *ast.GenDecl:
		// A grouped decl is attributed to its first named spec.
		for _, spec := range d.Specs {
			switch s := spec.(type) {
			case *ast.TypeSpec:
				return s.Name.Name
			case *ast.ValueSpec:
				if len(s.Names) > 0 {
					return s.Names[0].Name
				}
			}
		}
	}
	return ""
}

func receiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		if ident, ok := t.X.(*ast.Ident); ok {
			return "*" + ident.Name
		}
	}
	return ""
}

// FormatCheckErrors renders errs one per line in file:line:col form.
func FormatCheckErrors(filename string, errs []CheckError) string {
	var sb strings.Builder
	for _, e := range errs {
		fmt.Fprintf(&sb, "%s:%d:%d: ", filename, e.Line, e.Column)
		if e.Decl != "" && e.Decl != "<package>" {
			sb.WriteString(e.Decl + ": ")
		}
		sb.WriteString(e.Message)
		sb.WriteByte('\n')
	}
	return sb.String()
}
