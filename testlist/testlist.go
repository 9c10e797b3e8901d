package testlist

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
)

// Package is a directory of tests together with the import path go test
// reports its events under
type Package struct {
	ImportPath string
	Dir        string
	Tests      []string
}

// FindTestFunctions takes a package path and working directory, and returns the
// sorted names of the top-level test functions declared in the package
func FindTestFunctions(pkgPath string, workingDir string) ([]string, error) {
	pkgDir, err := packageDir(pkgPath, workingDir)
	if err != nil {
		return nil, err
	}
	return testFunctions(pkgDir)
}

// FindPackageTests lists the test functions of every package matched by
// pattern, which is a package path as FindTestFunctions accepts, optionally
// ending in "/..." to include the packages below it. Only packages declaring
// at least one test are returned, sorted by import path.
func FindPackageTests(pattern string, workingDir string) ([]Package, error) {
	base, recursive := strings.CutSuffix(pattern, "...")
	if recursive {
		base = strings.TrimSuffix(base, "/")
		if base == "" {
			return nil, fmt.Errorf("pattern %s is not supported, use ./...", pattern)
		}
	}

	root, err := packageDir(base, workingDir)
	if err != nil {
		return nil, err
	}
	modulePath, moduleRoot, err := findModule(root)
	if err != nil {
		return nil, err
	}

	dirs := []string{root}
	if recursive {
		dirs, err = packageDirs(root)
		if err != nil {
			return nil, err
		}
	}

	var pkgs []Package
	for _, dir := range dirs {
		tests, err := testFunctions(dir)
		if err != nil {
			return nil, err
		}
		if len(tests) == 0 && recursive {
			continue
		}
		rel, err := filepath.Rel(moduleRoot, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve import path of %s: %w", dir, err)
		}
		importPath := modulePath
		if rel != "." {
			importPath += "/" + filepath.ToSlash(rel)
		}
		pkgs = append(pkgs, Package{ImportPath: importPath, Dir: dir, Tests: tests})
	}

	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].ImportPath < pkgs[j].ImportPath })
	return pkgs, nil
}

// packageDirs walks root the way go test expands "/...": directories named
// testdata or vendor, or starting with "." or "_", and nested modules are skipped.
func packageDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root {
			name := d.Name()
			if name == "testdata" || name == "vendor" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
				return filepath.SkipDir
			}
			if _, err := os.Stat(filepath.Join(path, "go.mod")); err == nil {
				return filepath.SkipDir
			}
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return dirs, nil
}

// findModule returns the module path and root directory of the module
// containing dir, searching parent directories for go.mod.
func findModule(dir string) (string, string, error) {
	for current := dir; ; {
		goModPath := filepath.Join(current, "go.mod")
		content, err := os.ReadFile(goModPath)
		if err == nil {
			modulePath := modfile.ModulePath(content)
			if modulePath == "" {
				return "", "", fmt.Errorf("could not find module name in %s", goModPath)
			}
			return modulePath, current, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", "", fmt.Errorf("failed to read go.mod: %w", err)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", "", fmt.Errorf("no go.mod found for %s", dir)
		}
		current = parent
	}
}

func testFunctions(pkgDir string) ([]string, error) {
	entries, err := os.ReadDir(pkgDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read package directory: %w", err)
	}

	var testFunctions []string
	fset := token.NewFileSet()

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "_test.go") {
			continue
		}

		filePath := filepath.Join(pkgDir, entry.Name())
		f, err := parser.ParseFile(fset, filePath, nil, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", entry.Name(), err)
		}

		for _, decl := range f.Decls {
			funcDecl, ok := decl.(*ast.FuncDecl)
			if !ok || !isTestFunc(funcDecl) {
				continue
			}
			testFunctions = append(testFunctions, funcDecl.Name.Name)
		}
	}

	sort.Strings(testFunctions)
	return testFunctions, nil
}

// packageDir maps a module import path or a ./relative path onto a directory
func packageDir(pkgPath string, workingDir string) (string, error) {
	if pkgPath == "." || strings.HasPrefix(pkgPath, "./") {
		return filepath.Join(workingDir, strings.TrimPrefix(pkgPath, "./")), nil
	}

	goModPath := filepath.Join(workingDir, "go.mod")
	goModContent, err := os.ReadFile(goModPath)
	if err != nil {
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}

	modFile, err := modfile.Parse(goModPath, goModContent, nil)
	if err != nil {
		return "", fmt.Errorf("failed to parse go.mod: %w", err)
	}
	if modFile.Module == nil || modFile.Module.Mod.Path == "" {
		return "", fmt.Errorf("could not find module name in go.mod")
	}
	moduleName := modFile.Module.Mod.Path

	if pkgPath != moduleName && !strings.HasPrefix(pkgPath, moduleName+"/") {
		return "", fmt.Errorf("package %s is not in module %s", pkgPath, moduleName)
	}

	relPath := strings.TrimPrefix(strings.TrimPrefix(pkgPath, moduleName), "/")
	if relPath == "" {
		relPath = "."
	}
	return filepath.Join(workingDir, relPath), nil
}

// isTestFunc reports whether fn is a func TestXxx(t *testing.T) the go tool runs.
// Methods and TestMain are excluded.
func isTestFunc(fn *ast.FuncDecl) bool {
	name := fn.Name.Name
	if fn.Recv != nil || !strings.HasPrefix(name, "Test") || name == "TestMain" {
		return false
	}
	if rest := strings.TrimPrefix(name, "Test"); rest != "" {
		if r := rest[0]; r >= 'a' && r <= 'z' {
			return false
		}
	}

	params := fn.Type.Params.List
	if len(params) != 1 || len(params[0].Names) > 1 {
		return false
	}
	star, ok := params[0].Type.(*ast.StarExpr)
	if !ok {
		return false
	}
	sel, ok := star.X.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	return sel.Sel.Name == "T"
}
