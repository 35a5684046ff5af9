package report

import (
	"path"
	"sort"

	"busrisk/internal/storage"
)

// treeBuilder assembles the directory tree from slash-separated file paths
type treeBuilder struct {
	root *DirNode
	dirs map[string]*DirNode
}

func newTreeBuilder() *treeBuilder {
	root := newDirNode("", "")
	return &treeBuilder{root: root, dirs: map[string]*DirNode{"": root}}
}

func newDirNode(name, p string) *DirNode {
	return &DirNode{
		Name:        name,
		Path:        p,
		AuthorRisks: map[string]storage.Stats{},
		Dirs:        []*DirNode{},
		Files:       []*FileNode{},
	}
}

// dir returns the node for directory p, creating it and its parents
func (b *treeBuilder) dir(p string) *DirNode {
	if node, ok := b.dirs[p]; ok {
		return node
	}
	parent := b.dir(dirOf(p))
	node := newDirNode(path.Base(p), p)
	parent.Dirs = append(parent.Dirs, node)
	b.dirs[p] = node
	return node
}

// add places a file and rolls its statistics up to every ancestor
func (b *treeBuilder) add(f *FileNode) {
	dirPath := dirOf(f.Path)
	parent := b.dir(dirPath)
	parent.Files = append(parent.Files, f)

	for p := dirPath; ; p = dirOf(p) {
		node := b.dirs[p]
		addStats(&node.Stats, f.Stats)
		for label, s := range f.AuthorRisks {
			acc := node.AuthorRisks[label]
			addStats(&acc, s)
			node.AuthorRisks[label] = acc
		}
		if p == "" {
			break
		}
	}
}

// dirOf returns the directory of p, with "" standing for the root
func dirOf(p string) string {
	d := path.Dir(p)
	if d == "." || d == "/" {
		return ""
	}
	return d
}

// build sorts children by name and returns the root
func (b *treeBuilder) build() *DirNode {
	for _, node := range b.dirs {
		sort.Slice(node.Dirs, func(i, j int) bool { return node.Dirs[i].Name < node.Dirs[j].Name })
		sort.Slice(node.Files, func(i, j int) bool { return node.Files[i].Name < node.Files[j].Name })
	}
	return b.root
}

func addStats(dst *storage.Stats, s storage.Stats) {
	dst.TotKnowledge += s.TotKnowledge
	dst.TotRisk += s.TotRisk
	dst.TotOrphaned += s.TotOrphaned
}
