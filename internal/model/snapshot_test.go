package model

import (
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"pgregory.net/rapid"
)

func treeDepth(n *TreeNode) int {
	deepest := 0
	for _, c := range n.Children {
		if d := treeDepth(c) + 1; d > deepest {
			deepest = d
		}
	}
	return deepest
}

func chain(levels int) *TreeNode {
	leaf := NewFileNode("leaf", "/leaf", 8)
	node := leaf
	for i := 0; i < levels; i++ {
		dir := NewDirNode("d", "/d")
		dir.Children = append(dir.Children, node)
		dir.UpdateSize()
		node = dir
	}
	return node
}

func TestLimitDepth_TruncatesDeepTree(t *testing.T) {
	root := chain(150)
	assert.Equal(t, treeDepth(root), 150)

	snap := LimitDepth(root, DefaultMaxDepth)
	assert.Equal(t, treeDepth(snap), DefaultMaxDepth)
	assert.Equal(t, snap.Size, root.Size)

	n := snap
	for i := 0; i < DefaultMaxDepth; i++ {
		assert.Assert(t, is.Len(n.Children, 1))
		n = n.Children[0]
	}
	assert.Assert(t, n.IsDirectory)
	assert.Assert(t, n.Children != nil)
	assert.Assert(t, is.Len(n.Children, 0))
	assert.Equal(t, n.Size, uint64(8))
}

func TestLimitDepth_ShallowTreeUnchanged(t *testing.T) {
	root := chain(3)
	snap := LimitDepth(root, DefaultMaxDepth)
	assert.DeepEqual(t, snap, root)
	// Must be a copy.
	snap.Children[0].Name = "changed"
	assert.Equal(t, root.Children[0].Name, "d")
}

func TestLimitDepth_FileAtCutoff(t *testing.T) {
	root := chain(1)
	snap := LimitDepth(root, 1)
	assert.Assert(t, snap.Children[0].Children == nil)
	assert.Assert(t, !snap.Children[0].IsDirectory)
}

func TestLimitDepth_Nil(t *testing.T) {
	assert.Assert(t, LimitDepth(nil, 5) == nil)
}

func TestLimitDepth_PreservesSizes_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		root := genTree(t, "r", 6)
		limit := rapid.IntRange(0, 6).Draw(t, "limit")
		snap := LimitDepth(root, limit)
		if snap.Size != root.Size {
			t.Fatalf("root size changed: %d != %d", snap.Size, root.Size)
		}
		if d := treeDepth(snap); d > limit {
			t.Fatalf("depth %d exceeds %d", d, limit)
		}
	})
}
