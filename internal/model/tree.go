package model

const maxUint64 = ^uint64(0)

// TreeNode is one filesystem object in a scan result.
// Directories always carry a non-nil Children slice, files carry nil.
type TreeNode struct {
	Name        string      `json:"name"`
	Size        uint64      `json:"size"`
	Path        string      `json:"path"`
	IsDirectory bool        `json:"isDirectory"`
	Children    []*TreeNode `json:"children"`
}

// CompactNode is the wire projection of a TreeNode used in streamed batches.
type CompactNode struct {
	Name        string        `json:"n"`
	Size        uint64        `json:"s"`
	Children    []CompactNode `json:"c,omitempty"`
	IsDirectory bool          `json:"d"`
}

// NewFileNode creates a childless leaf.
func NewFileNode(name, path string, size uint64) *TreeNode {
	return &TreeNode{Name: name, Path: path, Size: size}
}

// NewDirNode creates a directory node with an empty child list.
func NewDirNode(name, path string) *TreeNode {
	return &TreeNode{Name: name, Path: path, IsDirectory: true, Children: []*TreeNode{}}
}

// NewEmptyLeaf creates the zero-size placeholder used when an entry is
// skipped (outside the root, on the active recursion path, or already seen).
func NewEmptyLeaf(name, path string) *TreeNode {
	return &TreeNode{Name: name, Path: path}
}

// UpdateSize recomputes a directory's size from its direct children.
func (n *TreeNode) UpdateSize() {
	if !n.IsDirectory {
		return
	}
	var size uint64
	for _, c := range n.Children {
		size = SaturatingAdd(size, c.Size)
	}
	n.Size = size
}

// Compact projects the subtree onto the wire form.
func (n *TreeNode) Compact() CompactNode {
	cn := CompactNode{Name: n.Name, Size: n.Size, IsDirectory: n.IsDirectory}
	if len(n.Children) > 0 {
		cn.Children = make([]CompactNode, len(n.Children))
		for i, c := range n.Children {
			cn.Children[i] = c.Compact()
		}
	}
	return cn
}

// SaturatingAdd adds two sizes, clamping at the maximum instead of wrapping.
func SaturatingAdd(a, b uint64) uint64 {
	if a > maxUint64-b {
		return maxUint64
	}
	return a + b
}
