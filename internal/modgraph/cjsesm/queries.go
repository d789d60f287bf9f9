package cjsesm

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
			panic("cjsesm: failed to set typescript language: " + err.Error())
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
	cjsDetectQuery     *ts.Query
	cjsDetectQueryOnce sync.Once
	cjsDetectQueryErr  error
)

func getCjsDetectQuery() (*ts.Query, error) {
	cjsDetectQueryOnce.Do(func() {
		data, err := queryFiles.ReadFile("queries/typescript/cjs_detect.scm")
		if err != nil {
			cjsDetectQueryErr = err
			return
		}
		cjsDetectQuery, cjsDetectQueryErr = ts.NewQuery(typescriptLanguage, string(data))
	})
	return cjsDetectQuery, cjsDetectQueryErr
}

// looksLikeCjs runs the cjs_detect query over source, reporting whether it
// saw a bare require(...) call or a module.exports/exports.x assignment at
// any syntactic position — a cheap syntactic signal, not a semantic one
// (spec.md §4.8 describes this explicitly as a heuristic).
func looksLikeCjs(source []byte) (bool, error) {
	query, err := getCjsDetectQuery()
	if err != nil {
		return false, fmt.Errorf("cjsesm: loading query: %w", err)
	}

	parser := getParser()
	defer putParser(parser)
	tree := parser.Parse(source, nil)
	if tree == nil {
		return false, fmt.Errorf("cjsesm: parse failed")
	}
	defer tree.Close()

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	matches := cursor.Matches(query, tree.RootNode(), source)
	captureNames := query.CaptureNames()
	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, capture := range match.Captures {
			name := captureNames[capture.Index]
			switch name {
			case "call.name":
				if capture.Node.Utf8Text(source) == "require" {
					return true, nil
				}
			case "member.object":
				text := capture.Node.Utf8Text(source)
				if text == "module" || text == "exports" {
					return true, nil
				}
			}
		}
	}
	return false, nil
}
