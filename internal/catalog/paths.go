package catalog

import (
	"fmt"
	"strings"

	"go_gitsync/internal/model"
	"go_gitsync/internal/tree"
)

// RefType says what a tree path addresses.
type RefType string

const (
	RefAccountDefaults RefType = "ACCOUNT_DEFAULTS"
	RefAccountEntity   RefType = "ACCOUNT_ENTITY"
	RefAppIndex        RefType = "APP_INDEX"
	RefAppDefaults     RefType = "APP_DEFAULTS"
	RefAppEntity       RefType = "APP_ENTITY"
)

// EntityRef is a parsed tree path.
type EntityRef struct {
	Type    RefType
	AppName string
	Kind    model.EntityKind
	Name    string
}

// ParseEntityPath maps a tree file path back to the catalog entity it
// addresses. The inverse of the path builders below.
func ParseEntityPath(path string) (*EntityRef, error) {
	segments := strings.Split(path, "/")
	if len(segments) < 2 || segments[0] != tree.SetupFolder {
		return nil, fmt.Errorf("unrecognized path: %s", path)
	}

	switch {
	case len(segments) == 2 && segments[1] == tree.DefaultsFile:
		return &EntityRef{Type: RefAccountDefaults}, nil

	case len(segments) == 3 && segments[1] != tree.ApplicationsFolder:
		kind, ok := tree.KindForAccountFolder(segments[1])
		if !ok {
			return nil, fmt.Errorf("unrecognized category folder in path: %s", path)
		}
		return &EntityRef{Type: RefAccountEntity, Kind: kind, Name: trimYaml(segments[2])}, nil

	case len(segments) == 4 && segments[1] == tree.ApplicationsFolder:
		switch segments[3] {
		case tree.IndexFile:
			return &EntityRef{Type: RefAppIndex, AppName: segments[2]}, nil
		case tree.DefaultsFile:
			return &EntityRef{Type: RefAppDefaults, AppName: segments[2]}, nil
		}
		return nil, fmt.Errorf("unrecognized application file in path: %s", path)

	case len(segments) == 5 && segments[1] == tree.ApplicationsFolder:
		kind, ok := tree.KindForAppFolder(segments[3])
		if !ok {
			return nil, fmt.Errorf("unrecognized section folder in path: %s", path)
		}
		return &EntityRef{Type: RefAppEntity, AppName: segments[2], Kind: kind, Name: trimYaml(segments[4])}, nil
	}

	return nil, fmt.Errorf("unrecognized path: %s", path)
}

func trimYaml(name string) string {
	return strings.TrimSuffix(name, tree.YamlExtension)
}

// PathForAppEntity builds the tree path of an application-scoped entity.
func PathForAppEntity(appName string, kind model.EntityKind, name string) (string, error) {
	folder, ok := tree.FolderForKind(kind)
	if !ok || tree.IsAccountKind(kind) {
		return "", fmt.Errorf("kind %s is not application scoped", kind)
	}
	return strings.Join([]string{tree.SetupFolder, tree.ApplicationsFolder, appName, folder, name + tree.YamlExtension}, "/"), nil
}

// PathForAccountEntity builds the tree path of an account-scoped entity.
func PathForAccountEntity(kind model.EntityKind, name string) (string, error) {
	folder, ok := tree.FolderForKind(kind)
	if !ok || !tree.IsAccountKind(kind) {
		return "", fmt.Errorf("kind %s is not account scoped", kind)
	}
	return strings.Join([]string{tree.SetupFolder, folder, name + tree.YamlExtension}, "/"), nil
}
