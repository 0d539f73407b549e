package lineage

import "github.com/leapstack-labs/assetlineage/pkg/core"

// Tree is the fully expanded dependency tree of one asset.
type Tree struct {
	Name       string  `json:"name"`
	Upstreams  []*Tree `json:"upstreams"`
	Downstream []*Tree `json:"downstream"`
	// Truncated is set on the root when the node budget cut the expansion
	// short.
	Truncated bool `json:"truncated,omitempty"`
}

// DefaultMaxNodes is the node budget used when TreeOptions.MaxNodes is 0.
// Paths multiply on dense graphs, so expansion is always bounded.
const DefaultMaxNodes = 10000

// TreeOptions bounds tree expansion.
type TreeOptions struct {
	// MaxDepth limits how many levels below the root are expanded
	// (0 = unlimited). Assets at the limit are emitted as leaves.
	MaxDepth int
	// MaxNodes caps the number of nodes in the tree, root included
	// (0 = DefaultMaxNodes). Children past the budget are dropped.
	MaxNodes int
}

// BuildTree expands the asset identified by assetID into a dependency tree.
// assetID is matched against Asset.Key (the ID, or the name for assets
// without one). It returns nil if no asset matches.
func BuildTree(assetID string, assets []*core.Asset) *Tree {
	return BuildTreeWithOptions(assetID, assets, TreeOptions{})
}

// BuildTreeWithOptions is BuildTree with explicit expansion bounds.
//
// Each branch carries its own copy of the visited set. An asset already on
// the path from the root collapses its branch, which is dropped from the
// parent's children; the same asset may still appear in unrelated branches.
// Upstream names that match no asset, and non-asset upstreams such as URIs,
// appear as leaves. Children are added depth-first in declaration order
// until the node budget runs out.
func BuildTreeWithOptions(assetID string, assets []*core.Asset, opts TreeOptions) *Tree {
	b := &treeBuilder{
		byKey:    make(map[string]*core.Asset, len(assets)),
		byName:   make(map[string]*core.Asset, len(assets)),
		maxDepth: opts.MaxDepth,
		budget:   opts.MaxNodes,
	}
	if b.budget <= 0 {
		b.budget = DefaultMaxNodes
	}
	for _, a := range assets {
		if a == nil {
			continue
		}
		if _, ok := b.byKey[a.Key()]; !ok {
			b.byKey[a.Key()] = a
		}
		if _, ok := b.byName[a.Name]; !ok {
			b.byName[a.Name] = a
		}
	}

	root, ok := b.byKey[assetID]
	if !ok {
		return nil
	}
	t := b.expand(root, map[string]struct{}{}, 0)
	t.Truncated = b.truncated
	return t
}

type treeBuilder struct {
	byKey     map[string]*core.Asset
	byName    map[string]*core.Asset
	maxDepth  int
	budget    int
	truncated bool
}

// node allocates a tree node against the budget, or returns nil once it is
// spent.
func (b *treeBuilder) node(name string) *Tree {
	if b.budget <= 0 {
		b.truncated = true
		return nil
	}
	b.budget--
	return leaf(name)
}

func (b *treeBuilder) expand(a *core.Asset, visited map[string]struct{}, depth int) *Tree {
	key := a.Key()
	if _, seen := visited[key]; seen {
		return nil
	}

	t := b.node(a.Name)
	if t == nil {
		return nil
	}
	if b.maxDepth > 0 && depth >= b.maxDepth {
		return t
	}

	branch := make(map[string]struct{}, len(visited)+1)
	for k := range visited {
		branch[k] = struct{}{}
	}
	branch[key] = struct{}{}

	for _, up := range a.Upstreams {
		if child := b.child(up, branch, depth+1); child != nil {
			t.Upstreams = append(t.Upstreams, child)
		}
	}
	for _, down := range a.Downstreams {
		if child := b.child(down, branch, depth+1); child != nil {
			t.Downstream = append(t.Downstream, child)
		}
	}
	return t
}

func (b *treeBuilder) child(ref core.UpstreamRef, visited map[string]struct{}, depth int) *Tree {
	if !ref.IsAsset() {
		return b.node(ref.Value)
	}
	dep, ok := b.byName[ref.Value]
	if !ok {
		return b.node(ref.Value)
	}
	return b.expand(dep, visited, depth)
}

func leaf(name string) *Tree {
	return &Tree{Name: name, Upstreams: []*Tree{}, Downstream: []*Tree{}}
}

// Depth returns the number of levels in the tree, counting the root.
func (t *Tree) Depth() int {
	if t == nil {
		return 0
	}
	deepest := 0
	for _, c := range t.Upstreams {
		if d := c.Depth(); d > deepest {
			deepest = d
		}
	}
	for _, c := range t.Downstream {
		if d := c.Depth(); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

// Size returns the number of nodes in the tree, root included.
func (t *Tree) Size() int {
	if t == nil {
		return 0
	}
	n := 1
	for _, c := range t.Upstreams {
		n += c.Size()
	}
	for _, c := range t.Downstream {
		n += c.Size()
	}
	return n
}
