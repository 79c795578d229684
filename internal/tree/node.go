package tree

// Node is either a FolderNode or a FileNode.
type Node interface {
	NodeName() string
}

// FolderNode 目录节点
type FolderNode struct {
	Name     string
	Children []Node
}

// NodeName implements Node
func (f *FolderNode) NodeName() string { return f.Name }

// Add appends a child and returns the folder for chaining.
func (f *FolderNode) Add(children ...Node) *FolderNode {
	f.Children = append(f.Children, children...)
	return f
}

// FileNode 文件叶子节点
// Err carries a render failure discovered while building; traversal decides
// whether it aborts or is recorded and skipped.
type FileNode struct {
	Name    string
	Content string
	Err     error
}

// NodeName implements Node
func (f *FileNode) NodeName() string { return f.Name }
