package tree

import (
	"fmt"

	"go_gitsync/internal/model"
)

// RenderFailure reports one leaf that could not be rendered during a
// non-fail-fast traversal.
type RenderFailure struct {
	FilePath string
	Err      error
}

// TraverseDirectory walks a tree depth-first and emits one ADD file change
// per leaf, paths '/'-joined under basePath. With failFast the first render
// failure aborts the walk; otherwise failures are collected and the walk
// continues.
func TraverseDirectory(node Node, basePath string, failFast bool) ([]model.GitFileChange, []RenderFailure, error) {
	var changes []model.GitFileChange
	var failures []RenderFailure

	var walk func(node Node, path string) error
	walk = func(node Node, path string) error {
		switch n := node.(type) {
		case *FolderNode:
			prefix := join(path, n.Name)
			for _, child := range n.Children {
				if err := walk(child, prefix); err != nil {
					return err
				}
			}
		case *FileNode:
			filePath := join(path, n.Name)
			if n.Err != nil {
				if failFast {
					return fmt.Errorf("failed to render %s: %w", filePath, n.Err)
				}
				failures = append(failures, RenderFailure{FilePath: filePath, Err: n.Err})
				return nil
			}
			changes = append(changes, model.GitFileChange{
				FilePath:    filePath,
				FileContent: n.Content,
				ChangeType:  model.ChangeTypeAdd,
			})
		}
		return nil
	}

	if err := walk(node, basePath); err != nil {
		return nil, nil, err
	}
	return changes, failures, nil
}

func join(base, name string) string {
	if base == "" {
		return name
	}
	return base + "/" + name
}
