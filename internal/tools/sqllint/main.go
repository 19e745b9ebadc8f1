// Command sqllint fails when an inline SQL constant lacks its
// `--sql <uuid>` marker or reuses a marker of another constant. SQLRunner
// logs statements by marker, so markers must be present and unique.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	sqlKeywordPattern = regexp.MustCompile(`(?i)^\s*(--[^\n]*\n\s*)?(select|insert|update|delete|with)\b`)
	sqlBodyPattern    = regexp.MustCompile(`(?i)\b(from|into|set|values|returning|where)\b|;`)
	uuidMarkerPattern = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

type violation struct {
	pos     token.Position
	name    string
	message string
}

func (v violation) String() string {
	return fmt.Sprintf("%s:%d %s (%s)", v.pos.Filename, v.pos.Line, v.message, v.name)
}

type linter struct {
	fset    *token.FileSet
	markers map[string]token.Position
	found   []violation
}

func newLinter() *linter {
	return &linter{fset: token.NewFileSet(), markers: make(map[string]token.Position)}
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"."}
	}

	l := newLinter()
	for _, target := range targets {
		if err := l.lintPath(target); err != nil {
			fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
			os.Exit(1)
		}
	}
	if len(l.found) > 0 {
		fmt.Fprintln(os.Stderr, "sqllint: invalid SQL markers")
		for _, v := range l.violations() {
			fmt.Fprintf(os.Stderr, "  %s\n", v)
		}
		os.Exit(1)
	}
}

func (l *linter) lintPath(target string) error {
	info, err := os.Stat(target)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		if filepath.Ext(target) != ".go" {
			return nil
		}
		return l.lintFile(target, nil)
	}
	return filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		return l.lintFile(path, nil)
	})
}

// lintFile checks one file. src overrides reading from disk when non-nil.
func (l *linter) lintFile(path string, src any) error {
	file, err := parser.ParseFile(l.fset, path, src, 0)
	if err != nil {
		return err
	}
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil || !looksLikeSQL(raw) {
				continue
			}
			name := ""
			if i < len(vs.Names) {
				name = vs.Names[i].Name
			}
			l.check(name, raw, l.fset.Position(bl.Pos()))
		}
		return true
	})
	return nil
}

func looksLikeSQL(s string) bool {
	return sqlKeywordPattern.MatchString(s) && sqlBodyPattern.MatchString(s)
}

func (l *linter) check(name, query string, pos token.Position) {
	marker := firstLine(query)
	if !uuidMarkerPattern.MatchString(marker) {
		l.found = append(l.found, violation{pos: pos, name: name, message: "missing or invalid --sql <uuid> marker"})
		return
	}
	if prev, dup := l.markers[marker]; dup {
		l.found = append(l.found, violation{pos: pos, name: name, message: fmt.Sprintf("marker already used at %s:%d", prev.Filename, prev.Line)})
		return
	}
	l.markers[marker] = pos
}

func (l *linter) violations() []violation {
	out := append([]violation(nil), l.found...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].pos.Filename != out[j].pos.Filename {
			return out[i].pos.Filename < out[j].pos.Filename
		}
		return out[i].pos.Line < out[j].pos.Line
	})
	return out
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) >= 2 && v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}
