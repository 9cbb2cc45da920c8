package architecture_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
)

const modulePath = "github.com/davidleathers/fraud-stepup-backend"

// TestDomainNotDependOnInfrastructure ensures the domain layer stays free of
// drivers, transports and outer layers
func TestDomainNotDependOnInfrastructure(t *testing.T) {
	forbiddenImports := []string{
		"database/sql",
		"net/http",
		"github.com/lib/pq",
		"github.com/jackc/pgx",
		"github.com/redis/go-redis",
		"github.com/prometheus",
		"go.uber.org/zap",
		modulePath + "/internal/infrastructure",
		modulePath + "/internal/service",
		modulePath + "/internal/api",
	}

	for _, file := range sourceFiles(t, "../domain") {
		for _, imp := range fileImports(t, file) {
			for _, forbidden := range forbiddenImports {
				if strings.HasPrefix(imp, forbidden) {
					t.Errorf("Domain file %s imports %s", file, imp)
				}
			}
		}
	}
}

// TestServicesDependOnPorts ensures services reach infrastructure only
// through their own interfaces
func TestServicesDependOnPorts(t *testing.T) {
	forbiddenImports := []string{
		"database/sql",
		"github.com/jackc/pgx",
		"github.com/redis/go-redis",
		modulePath + "/internal/infrastructure",
		modulePath + "/internal/api",
	}

	for _, file := range sourceFiles(t, "../service") {
		for _, imp := range fileImports(t, file) {
			for _, forbidden := range forbiddenImports {
				if strings.HasPrefix(imp, forbidden) {
					t.Errorf("Service file %s imports %s", file, imp)
				}
			}
		}
	}
}

// TestValueObjectsAreImmutable ensures value objects don't have setters
func TestValueObjectsAreImmutable(t *testing.T) {
	for _, file := range sourceFiles(t, "../domain/values") {
		fset := token.NewFileSet()
		node, err := parser.ParseFile(fset, file, nil, parser.SkipObjectResolution)
		if err != nil {
			t.Errorf("Failed to parse %s: %v", file, err)
			continue
		}

		for _, decl := range node.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if ok && fn.Recv != nil && strings.HasPrefix(fn.Name.Name, "Set") {
				t.Errorf("Value object in %s has setter method: %s", file, fn.Name.Name)
			}
		}
	}
}

// sourceFiles lists the non-test Go files below root
func sourceFiles(t *testing.T, root string) []string {
	t.Helper()

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".go") && !strings.HasSuffix(path, "_test.go") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	if len(files) == 0 {
		t.Fatalf("no source files under %s", root)
	}
	return files
}

func fileImports(t *testing.T, filename string) []string {
	t.Helper()

	fset := token.NewFileSet()
	node, err := parser.ParseFile(fset, filename, nil, parser.ImportsOnly)
	if err != nil {
		t.Errorf("Failed to parse %s: %v", filename, err)
		return nil
	}

	imports := make([]string, 0, len(node.Imports))
	for _, imp := range node.Imports {
		imports = append(imports, strings.Trim(imp.Path.Value, `"`))
	}
	return imports
}
