package geo

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Node is one named entry of the hierarchy source with its children.
// Depth in the tree gives the level: departments at the root, centers as
// leaves.
type Node struct {
	Name     string
	Children []Node
}

// Tree is the decoded hierarchy source.
type Tree struct {
	Departments []Node
}

// SkipNotice records an entry of the source that was ignored.
type SkipNotice struct {
	Path   string
	Reason string
}

func (s SkipNotice) String() string { return s.Path + ": " + s.Reason }

type centreEntry struct {
	Code    string `json:"code"`
	Libelle string `json:"libelle"`
}

// ParseTree decodes the nested hierarchy document:
//
//	{"<KEY>": {"departement": "...", "communes": {"<name>": {"arrondissements":
//	  {"<name>": {"villages": {"<name>": {"centres": [{"code", "libelle"}]}}}}}}}}
//
// Malformed entries below the root are skipped and reported; only an
// unreadable root fails. Object keys are visited in sorted order.
func ParseTree(r io.Reader) (*Tree, []SkipNotice, error) {
	var root map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&root); err != nil {
		return nil, nil, fmt.Errorf("decode hierarchy: %w", err)
	}

	p := &treeParser{}
	tree := &Tree{}
	for _, key := range sortedKeys(root) {
		var dept struct {
			Departement string          `json:"departement"`
			Communes    json.RawMessage `json:"communes"`
		}
		if err := json.Unmarshal(root[key], &dept); err != nil {
			p.skip(key, "department is not an object")
			continue
		}
		name := strings.TrimSpace(dept.Departement)
		if name == "" {
			name = strings.TrimSpace(key)
		}
		if name == "" {
			p.skip(key, "department has no name")
			continue
		}
		tree.Departments = append(tree.Departments, Node{
			Name:     name,
			Children: p.communes(name, dept.Communes),
		})
	}
	return tree, p.notices, nil
}

type treeParser struct {
	notices []SkipNotice
}

func (p *treeParser) skip(path, reason string) {
	p.notices = append(p.notices, SkipNotice{Path: path, Reason: reason})
}

func (p *treeParser) communes(path string, raw json.RawMessage) []Node {
	return p.objects(path, raw, "communes", func(name string, body json.RawMessage) (Node, bool) {
		var c struct {
			Arrondissements json.RawMessage `json:"arrondissements"`
		}
		if err := json.Unmarshal(body, &c); err != nil {
			p.skip(path+"/"+name, "commune is not an object")
			return Node{}, false
		}
		return Node{Name: name, Children: p.districts(path+"/"+name, c.Arrondissements)}, true
	})
}

func (p *treeParser) districts(path string, raw json.RawMessage) []Node {
	return p.objects(path, raw, "arrondissements", func(name string, body json.RawMessage) (Node, bool) {
		var d struct {
			Villages json.RawMessage `json:"villages"`
		}
		if err := json.Unmarshal(body, &d); err != nil {
			p.skip(path+"/"+name, "district is not an object")
			return Node{}, false
		}
		return Node{Name: name, Children: p.villages(path+"/"+name, d.Villages)}, true
	})
}

func (p *treeParser) villages(path string, raw json.RawMessage) []Node {
	return p.objects(path, raw, "villages", func(name string, body json.RawMessage) (Node, bool) {
		var v struct {
			Centres json.RawMessage `json:"centres"`
		}
		if err := json.Unmarshal(body, &v); err != nil || isNull(body) {
			p.skip(path+"/"+name, "village is not an object")
			return Node{}, false
		}
		return Node{Name: name, Children: p.centers(path+"/"+name, v.Centres)}, true
	})
}

// centers keeps the village even when its list is absent or malformed.
func (p *treeParser) centers(path string, raw json.RawMessage) []Node {
	if isNull(raw) {
		p.skip(path, "village has no centres")
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		p.skip(path, "centres is not a list")
		return nil
	}

	seen := make(map[string]bool, len(entries))
	out := make([]Node, 0, len(entries))
	for i, e := range entries {
		var c centreEntry
		if err := json.Unmarshal(e, &c); err != nil {
			p.skip(fmt.Sprintf("%s[%d]", path, i), "centre is not an object")
			continue
		}
		name := strings.TrimSpace(c.Libelle)
		if name == "" {
			p.skip(fmt.Sprintf("%s[%d]", path, i), "centre has no libelle")
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, Node{Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// objects walks a name-keyed object in sorted order. Trimmed names that
// collide are merged into the first node.
func (p *treeParser) objects(path string, raw json.RawMessage, what string, each func(string, json.RawMessage) (Node, bool)) []Node {
	if isNull(raw) {
		p.skip(path, "missing "+what)
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		p.skip(path, what+" is not an object")
		return nil
	}

	var out []Node
	index := make(map[string]int, len(m))
	for _, key := range sortedKeys(m) {
		name := strings.TrimSpace(key)
		if name == "" {
			p.skip(path, "empty name in "+what)
			continue
		}
		node, ok := each(name, m[key])
		if !ok {
			continue
		}
		if i, dup := index[name]; dup {
			out[i].Children = append(out[i].Children, node.Children...)
			continue
		}
		index[name] = len(out)
		out = append(out, node)
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Size returns the number of nodes per level.
func (t *Tree) Size() map[Level]int {
	out := make(map[Level]int, len(Path))
	var walk func(nodes []Node, depth int)
	walk = func(nodes []Node, depth int) {
		if depth >= len(Path) {
			return
		}
		out[Path[depth]] += len(nodes)
		for _, n := range nodes {
			walk(n.Children, depth+1)
		}
	}
	walk(t.Departments, 0)
	return out
}

// Total is the number of nodes across all levels.
func (t *Tree) Total() int {
	n := 0
	for _, c := range t.Size() {
		n += c
	}
	return n
}
