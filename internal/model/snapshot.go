package model

// DefaultMaxDepth bounds the tree attached to the completion message.
const DefaultMaxDepth = 100

// LimitDepth returns a copy of root truncated below maxDepth levels.
// Nodes at the cutoff keep their name, size, path and kind; directories
// there get an empty child list. Sizes are never recomputed.
func LimitDepth(root *TreeNode, maxDepth int) *TreeNode {
	if root == nil {
		return nil
	}
	return limitDepth(root, 0, maxDepth)
}

func limitDepth(n *TreeNode, depth, maxDepth int) *TreeNode {
	cp := &TreeNode{
		Name:        n.Name,
		Size:        n.Size,
		Path:        n.Path,
		IsDirectory: n.IsDirectory,
	}
	if !n.IsDirectory {
		return cp
	}
	if depth >= maxDepth {
		cp.Children = []*TreeNode{}
		return cp
	}
	cp.Children = make([]*TreeNode, len(n.Children))
	for i, c := range n.Children {
		cp.Children[i] = limitDepth(c, depth+1, maxDepth)
	}
	return cp
}
