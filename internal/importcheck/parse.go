// SPDX-License-Identifier: MPL-2.0

package importcheck

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

const (
	nodeImportStatement = "import_statement"
	nodeExportStatement = "export_statement"
	nodeCallExpression  = "call_expression"
	nodeImport          = "import"
	nodeString          = "string"
	nodeTemplateString  = "template_string"
	nodeSubstitution    = "template_substitution"
)

// Import is one import occurrence found in a source file.
type Import struct {
	// Specifier is the literal module specifier, without quotes.
	Specifier string
	// Dynamic is true for import() expressions.
	Dynamic bool
	// Line is the 1-based line of the occurrence.
	Line int
}

// languageFor returns the tree-sitter grammar for a file extension, or nil
// when the file is not a JavaScript/TypeScript module.
func languageFor(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".mjs", ".cjs", ".jsx":
		return javascript.GetLanguage()
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	default:
		return nil
	}
}

// parseImports extracts static and dynamic imports from src in source order.
// Files with an unsupported extension yield no imports.
func parseImports(ctx context.Context, path string, src []byte) ([]Import, error) {
	lang := languageFor(path)
	if lang == nil {
		return nil, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, nil
	}

	var imports []Import
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch node.Type() {
		case nodeImportStatement, nodeExportStatement:
			if spec, ok := literal(node.ChildByFieldName("source"), src); ok {
				imports = append(imports, Import{Specifier: spec, Line: line(node)})
			}
		case nodeCallExpression:
			if fn := node.ChildByFieldName("function"); fn != nil && fn.Type() == nodeImport {
				if spec, ok := firstArgument(node, src); ok {
					imports = append(imports, Import{Specifier: spec, Dynamic: true, Line: line(node)})
				}
			}
		}

		// Push children in reverse so they are visited in source order.
		for i := int(node.NamedChildCount()) - 1; i >= 0; i-- {
			stack = append(stack, node.NamedChild(i))
		}
	}

	return imports, nil
}

// firstArgument returns the literal first argument of an import() call.
func firstArgument(call *sitter.Node, src []byte) (string, bool) {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return "", false
	}
	return literal(args.NamedChild(0), src)
}

// literal unquotes a string or substitution-free template literal node.
func literal(node *sitter.Node, src []byte) (string, bool) {
	if node == nil {
		return "", false
	}
	switch node.Type() {
	case nodeString:
	case nodeTemplateString:
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if node.NamedChild(i).Type() == nodeSubstitution {
				return "", false
			}
		}
	default:
		return "", false
	}
	raw := node.Content(src)
	if len(raw) < 2 {
		return "", false
	}
	return raw[1 : len(raw)-1], true
}

func line(node *sitter.Node) int {
	return int(node.StartPoint().Row) + 1
}
