package server

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"testing"
)

// serviceFields are the Server fields that own mutations. storageFields must
// only be reached through them.
var (
	serviceFields = []string{"attachmentService", "catalogService", "timelineService", "collector"}
	storageFields = []string{"store", "blobs"}
)

type route struct {
	method, path, handler string
}

// serverSource is the parsed non-test sources of this package.
type serverSource struct {
	routes   []route
	handlers map[string]*ast.FuncDecl
}

func loadServerSource(t *testing.T) serverSource {
	t.Helper()
	_, self, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}

	fset := token.NewFileSet()
	skipTests := func(info os.FileInfo) bool { return !strings.HasSuffix(info.Name(), "_test.go") }
	pkgs, err := parser.ParseDir(fset, filepath.Dir(self), skipTests, 0)
	if err != nil {
		t.Fatalf("parse server package: %v", err)
	}
	pkg, ok := pkgs["server"]
	if !ok {
		t.Fatal("server package not found")
	}

	src := serverSource{handlers: map[string]*ast.FuncDecl{}}
	for name, file := range pkg.Files {
		for _, decl := range file.Decls {
			if fn, ok := decl.(*ast.FuncDecl); ok && onServer(fn) && strings.HasPrefix(fn.Name.Name, "handle") {
				src.handlers[fn.Name.Name] = fn
			}
		}
		if filepath.Base(name) == "routes.go" {
			src.routes = collectRoutes(t, file)
		}
	}
	if len(src.routes) == 0 {
		t.Fatal("no routes found in routes.go")
	}
	return src
}

func collectRoutes(t *testing.T, file *ast.File) []route {
	var out []route
	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok || len(call.Args) != 2 {
			return true
		}
		if sel, ok := call.Fun.(*ast.SelectorExpr); !ok || sel.Sel.Name != "HandleFunc" {
			return true
		}
		method, path, ok := strings.Cut(flattenPattern(t, call.Args[0]), " ")
		if !ok {
			return true
		}
		if handler := serverMethodName(call.Args[1]); handler != "" {
			out = append(out, route{method: method, path: path, handler: handler})
		}
		return true
	})
	return out
}

// flattenPattern joins string concatenations; other operands become "{var}".
func flattenPattern(t *testing.T, expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.BasicLit:
		value, err := strconv.Unquote(e.Value)
		if err != nil {
			t.Fatalf("unquote %s: %v", e.Value, err)
		}
		return value
	case *ast.BinaryExpr:
		return flattenPattern(t, e.X) + flattenPattern(t, e.Y)
	default:
		return "{var}"
	}
}

// serverMethodName resolves s.handleX and s.handleX(kind) registrations.
func serverMethodName(expr ast.Expr) string {
	if call, ok := expr.(*ast.CallExpr); ok {
		expr = call.Fun
	}
	sel, ok := expr.(*ast.SelectorExpr)
	if !ok {
		return ""
	}
	if recv, ok := sel.X.(*ast.Ident); !ok || recv.Name != "s" {
		return ""
	}
	return sel.Sel.Name
}

func onServer(fn *ast.FuncDecl) bool {
	if fn.Recv == nil || len(fn.Recv.List) != 1 {
		return false
	}
	star, ok := fn.Recv.List[0].Type.(*ast.StarExpr)
	if !ok {
		return false
	}
	ident, ok := star.X.(*ast.Ident)
	return ok && ident.Name == "Server"
}

// fieldCalls lists s.<field>.<method> calls in fn, grouped by field.
func fieldCalls(fn *ast.FuncDecl) map[string][]string {
	calls := map[string][]string{}
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		method, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		field, ok := method.X.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if recv, ok := field.X.(*ast.Ident); ok && recv.Name == "s" {
			calls[field.Sel.Name] = append(calls[field.Sel.Name], method.Sel.Name)
		}
		return true
	})
	return calls
}

func TestRoutesResolveToHandlers(t *testing.T) {
	src := loadServerSource(t)
	seen := map[string]bool{}
	for _, r := range src.routes {
		key := r.method + " " + r.path
		if seen[key] {
			t.Fatalf("route %s registered twice", key)
		}
		seen[key] = true
		if _, ok := src.handlers[r.handler]; !ok {
			t.Fatalf("route %s uses unknown handler %s", key, r.handler)
		}
	}
}

func TestMutationRoutesUseServiceBoundary(t *testing.T) {
	src := loadServerSource(t)
	checked := 0
	for _, r := range src.routes {
		if r.method == "GET" || !strings.HasPrefix(r.path, "/v1/") {
			continue
		}
		checked++
		calls := fieldCalls(src.handlers[r.handler])

		for _, field := range storageFields {
			if len(calls[field]) > 0 {
				t.Fatalf("%s %s (%s) calls s.%s directly: %v", r.method, r.path, r.handler, field, calls[field])
			}
		}
		if !slices.ContainsFunc(serviceFields, func(field string) bool { return len(calls[field]) > 0 }) {
			t.Fatalf("%s %s (%s) does not call a service", r.method, r.path, r.handler)
		}
	}
	if checked == 0 {
		t.Fatal("no mutation routes checked")
	}
}
