package modgraph

import (
	"embed"
	"fmt"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"
	tsTypescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

//go:embed queries/*/*.scm
var queryFiles embed.FS

var typescriptLanguage = ts.NewLanguage(tsTypescript.LanguageTypescript())

var tsParserPool = sync.Pool{
	New: func() any {
		parser := ts.NewParser()
		if err := parser.SetLanguage(typescriptLanguage); err != nil {
			panic("modgraph: failed to set typescript language: " + err.Error())
		}
		return parser
	},
}

func getParser() *ts.Parser {
	return tsParserPool.Get().(*ts.Parser)
}

func putParser(p *ts.Parser) {
	p.Reset()
	tsParserPool.Put(p)
}

var (
	importsQuery     *ts.Query
	importsQueryOnce sync.Once
	importsQueryErr  error
)

func getImportsQuery() (*ts.Query, error) {
	importsQueryOnce.Do(func() {
		data, err := queryFiles.ReadFile("queries/typescript/imports.scm")
		if err != nil {
			importsQueryErr = err
			return
		}
		importsQuery, importsQueryErr = ts.NewQuery(typescriptLanguage, string(data))
	})
	return importsQuery, importsQueryErr
}

// ImportEdge is one static or dynamic import/re-export found in a module's
// source text.
type ImportEdge struct {
	Specifier string
	IsDynamic bool
	Line      int
}

// extractImports parses source as TypeScript (a syntactic superset of
// JavaScript, so this handles plain .js/.jsx input too) and returns every
// import/export-from specifier and import() call argument it finds.
func extractImports(source []byte) ([]ImportEdge, error) {
	query, err := getImportsQuery()
	if err != nil {
		return nil, fmt.Errorf("modgraph: loading imports query: %w", err)
	}

	parser := getParser()
	defer putParser(parser)
	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("modgraph: parse failed")
	}
	defer tree.Close()

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	var edges []ImportEdge
	matches := cursor.Matches(query, tree.RootNode(), source)
	captureNames := query.CaptureNames()
	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, capture := range match.Captures {
			name := captureNames[capture.Index]
			text := capture.Node.Utf8Text(source)
			line := int(capture.Node.StartPosition().Row) + 1
			switch name {
			case "import.spec", "reexport.spec":
				edges = append(edges, ImportEdge{Specifier: text, Line: line})
			case "dynamicImport.spec":
				edges = append(edges, ImportEdge{Specifier: text, IsDynamic: true, Line: line})
			}
		}
	}
	return edges, nil
}
