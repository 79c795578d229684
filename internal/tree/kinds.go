package tree

import "go_gitsync/internal/model"

// FolderForKind returns the tree folder an entity kind lives in, for both
// account- and application-scoped kinds.
func FolderForKind(kind model.EntityKind) (string, bool) {
	for _, sec := range accountSections {
		if sec.kind == kind {
			return sec.folder, true
		}
	}
	for _, sec := range appSections {
		if sec.kind == kind {
			return sec.folder, true
		}
	}
	return "", false
}

// KindForAccountFolder maps a top-level category folder back to its kind.
func KindForAccountFolder(folder string) (model.EntityKind, bool) {
	for _, sec := range accountSections {
		if sec.folder == folder {
			return sec.kind, true
		}
	}
	return "", false
}

// KindForAppFolder maps an application section folder back to its kind.
func KindForAppFolder(folder string) (model.EntityKind, bool) {
	for _, sec := range appSections {
		if sec.folder == folder {
			return sec.kind, true
		}
	}
	return "", false
}

// IsAccountKind reports whether a kind is account scoped.
func IsAccountKind(kind model.EntityKind) bool {
	for _, sec := range accountSections {
		if sec.kind == kind {
			return true
		}
	}
	return false
}
