// Command sqllint checks that every SQL constant carries a unique
// "--sql <uuid>" marker on its first line. The runner refuses untagged
// queries at runtime; this catches them before they ship.
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

const defaultTarget = "internal/sqlinline"

var (
	sqlKeywordPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with)\b`)
	markerPattern     = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

func (v violation) String() string {
	return fmt.Sprintf("%s:%d %s (%s)", v.file, v.line, v.message, v.name)
}

// query is one SQL constant found in a source file.
type query struct {
	file   string
	name   string
	line   int
	marker string
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{defaultTarget}
	}

	violations, err := lint(targets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
		os.Exit(1)
	}
	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "sqllint: SQL audit marker problems")
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", v)
		}
		os.Exit(1)
	}
}

func lint(targets []string) ([]violation, error) {
	var queries []query
	var violations []violation
	for _, target := range targets {
		files, err := goFiles(target)
		if err != nil {
			return nil, err
		}
		for _, path := range files {
			qs, vs, err := lintFile(path)
			if err != nil {
				return nil, err
			}
			queries = append(queries, qs...)
			violations = append(violations, vs...)
		}
	}
	return append(violations, duplicates(queries)...), nil
}

func goFiles(target string) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if filepath.Ext(target) == ".go" {
			return []string{target}, nil
		}
		return nil, nil
	}
	var out []string
	err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == ".go" && !strings.HasSuffix(path, "_test.go") {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}

func lintFile(path string) ([]query, []violation, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return nil, nil, err
	}
	var queries []query
	var violations []violation
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
			if err != nil || !sqlKeywordPattern.MatchString(raw) {
				continue
			}
			name := "_"
			if i < len(vs.Names) && vs.Names[i] != nil {
				name = vs.Names[i].Name
			}
			line := fset.Position(bl.Pos()).Line
			m := markerPattern.FindStringSubmatch(firstLine(raw))
			if m == nil {
				violations = append(violations, violation{file: path, name: name, line: line, message: "missing or invalid --sql <uuid> marker"})
				continue
			}
			queries = append(queries, query{file: path, name: name, line: line, marker: m[1]})
		}
		return true
	})
	return queries, violations, nil
}

func duplicates(queries []query) []violation {
	seen := make(map[string]query, len(queries))
	var out []violation
	for _, q := range queries {
		if first, ok := seen[q.marker]; ok {
			out = append(out, violation{
				file:    q.file,
				name:    q.name,
				line:    q.line,
				message: fmt.Sprintf("marker %s already used by %s", q.marker, first.name),
			})
			continue
		}
		seen[q.marker] = q
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].file != out[j].file {
			return out[i].file < out[j].file
		}
		return out[i].line < out[j].line
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
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}
