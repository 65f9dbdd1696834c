// Package astindex builds a symbol index over a Python target
// repository using tree-sitter, giving the investigator and proposer
// stages a lookup contract (LookupSymbol/LookupCalls/Slice) without
// exposing any parser internals to the core (spec.md §1). Grounded in
// the wider example pack's tree-sitter Python binding
// (theRebelliousNerd-codenerd's internal/world/python_parser.go),
// since the target repos CIP-Agent repairs are Python even though
// CIP-Agent itself is Go.
package astindex

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Symbol is one indexed function, method, or class definition.
type Symbol struct {
	Name      string
	Kind      string // "function_definition" | "class_definition"
	File      string // relative to the repo root, forward-slash separated
	StartLine int    // 1-indexed, inclusive
	EndLine   int    // 1-indexed, inclusive
	Parent    string // enclosing class name, if any
}

// Call is one function-call site, used to build the call-graph hints
// the investigator feeds into candidate recall.
type Call struct {
	Callee    string
	File      string
	Line      int
}

// Index is a built symbol table over one repository checkout.
type Index struct {
	repoRoot string
	symbols  []Symbol
	calls    []Call
	fileText map[string][]byte
}

// BuildIndex walks every ".py" file under repoPath, parses it with the
// tree-sitter Python grammar, and collects function/class/decorated
// definitions and call sites.
func BuildIndex(repoPath string) (*Index, error) {
	idx := &Index{repoRoot: repoPath, fileText: make(map[string][]byte)}
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	err := filepath.Walk(repoPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".py") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		tree, err := parser.ParseCtx(context.Background(), nil, content)
		if err != nil {
			return err
		}
		defer tree.Close()

		rel, err := filepath.Rel(repoPath, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		idx.fileText[rel] = content

		walkNode(tree.RootNode(), rel, "", content, idx)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func walkNode(node *sitter.Node, file, parent string, content []byte, idx *Index) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "class_definition":
			sym := defSymbol(child, file, "class_definition", parent, content)
			if sym != nil {
				idx.symbols = append(idx.symbols, *sym)
				if body := child.ChildByFieldName("body"); body != nil {
					walkNode(body, file, sym.Name, content, idx)
				}
			}
		case "function_definition":
			sym := defSymbol(child, file, "function_definition", parent, content)
			if sym != nil {
				idx.symbols = append(idx.symbols, *sym)
			}
			if body := child.ChildByFieldName("body"); body != nil {
				walkNode(body, file, parent, content, idx)
			}
		case "decorated_definition":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				inner := child.NamedChild(j)
				if inner.Type() == "function_definition" || inner.Type() == "class_definition" {
					sym := defSymbol(inner, file, inner.Type(), parent, content)
					if sym != nil {
						sym.StartLine = int(child.StartPoint().Row) + 1
						idx.symbols = append(idx.symbols, *sym)
					}
					if body := inner.ChildByFieldName("body"); body != nil {
						bodyParent := parent
						if inner.Type() == "class_definition" && sym != nil {
							bodyParent = sym.Name
						}
						walkNode(body, file, bodyParent, content, idx)
					}
				} else {
					walkNode(inner, file, parent, content, idx)
				}
			}
		case "call":
			if fn := child.ChildByFieldName("function"); fn != nil {
				idx.calls = append(idx.calls, Call{
					Callee: string(content[fn.StartByte():fn.EndByte()]),
					File:   file,
					Line:   int(child.StartPoint().Row) + 1,
				})
			}
			walkNode(child, file, parent, content, idx)
		default:
			walkNode(child, file, parent, content, idx)
		}
	}
}

func defSymbol(node *sitter.Node, file, kind, parent string, content []byte) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	return &Symbol{
		Name:      string(content[nameNode.StartByte():nameNode.EndByte()]),
		Kind:      kind,
		File:      file,
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
		Parent:    parent,
	}
}

// LookupSymbol returns every indexed definition with the given name,
// across all files.
func (idx *Index) LookupSymbol(name string) []Symbol {
	var out []Symbol
	for _, s := range idx.symbols {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// LookupCalls returns every call site whose callee text matches name.
func (idx *Index) LookupCalls(name string) []Call {
	var out []Call
	for _, c := range idx.calls {
		if c.Callee == name {
			out = append(out, c)
		}
	}
	return out
}

// Slice returns a numbered-line context window for file between
// [start-padding, end+padding] (clamped to the file's bounds), the
// shape the Controller renders into proposer prompts (spec.md §4.9).
func (idx *Index) Slice(file string, start, end, padding int) string {
	content, ok := idx.fileText[file]
	if !ok {
		return ""
	}
	lines := strings.Split(string(content), "\n")

	from := start - padding
	if from < 1 {
		from = 1
	}
	to := end + padding
	if to > len(lines) {
		to = len(lines)
	}

	var sb strings.Builder
	for i := from; i <= to; i++ {
		sb.WriteString(strconv.Itoa(i))
		sb.WriteString(": ")
		sb.WriteString(lines[i-1])
		sb.WriteString("\n")
	}
	return sb.String()
}
