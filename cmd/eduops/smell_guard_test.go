package main

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"eduops/internal/config"
)

const defaultMaxCmdConstructorLines = 100

func TestCommandConstructorsStaySmall(t *testing.T) {
	maxLines := defaultMaxCmdConstructorLines
	if parsed, err := strconv.Atoi(strings.TrimSpace(os.Getenv("EDUOPS_MAX_CMD_CONSTRUCTOR_LINES"))); err == nil && parsed > 0 {
		maxLines = parsed
	}

	fset := token.NewFileSet()
	for _, path := range commandSourceFiles(t) {
		file, err := parser.ParseFile(fset, path, nil, 0)
		if err != nil {
			t.Fatalf("parse %s: %v", path, err)
		}
		ast.Inspect(file, func(n ast.Node) bool {
			fn, ok := n.(*ast.FuncDecl)
			if !ok || fn.Body == nil {
				return true
			}
			name := fn.Name.Name
			if !strings.HasPrefix(name, "new") || !strings.HasSuffix(name, "Cmd") {
				return false
			}
			length := fset.Position(fn.Body.Rbrace).Line - fset.Position(fn.Body.Lbrace).Line + 1
			if length > maxLines {
				t.Errorf("constructor %s in %s is too large: %d lines (max %d)", name, filepath.Base(path), length, maxLines)
			}
			return false
		})
	}
}

func TestLeafCommandsAreRunnableAndDescribed(t *testing.T) {
	cfg := config.Default()
	var walk func(cmd *cobra.Command)
	walk = func(cmd *cobra.Command) {
		if strings.TrimSpace(cmd.Short) == "" {
			t.Errorf("command %q has no short description", cmd.CommandPath())
		}
		children := cmd.Commands()
		if len(children) == 0 && cmd.RunE == nil {
			t.Errorf("leaf command %q has no RunE", cmd.CommandPath())
		}
		for _, child := range children {
			walk(child)
		}
	}
	walk(newRootCmd(&cfg))
}

func commandSourceFiles(t *testing.T) []string {
	t.Helper()
	_, self, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(self), "*.go"))
	if err != nil {
		t.Fatalf("glob sources: %v", err)
	}
	files := make([]string, 0, len(matches))
	for _, path := range matches {
		if !strings.HasSuffix(path, "_test.go") {
			files = append(files, path)
		}
	}
	return files
}
