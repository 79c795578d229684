package gitsync

import (
	"fmt"
	"regexp"
	"strings"

	"go_gitsync/internal/model"
	"go_gitsync/internal/tree"
)

// Path-shape patterns for everything this system will push or accept from
// git. A change set containing a path matching none of them fails before any
// git work starts.
var (
	accountFolders = []string{
		tree.CloudProvidersFolder,
		tree.ArtifactServersFolder,
		tree.CollaborationFolder,
		tree.VerificationFolder,
		tree.NotificationFolder,
		tree.SourceRepoFolder,
		tree.TemplateLibraryFolder,
	}
	appFolders = []string{
		tree.ServicesFolder,
		tree.EnvironmentsFolder,
		tree.WorkflowsFolder,
		tree.PipelinesFolder,
		tree.ProvisionersFolder,
		tree.TemplateLibraryFolder,
	}

	filePatterns   []*regexp.Regexp
	folderPatterns []*regexp.Regexp
)

func init() {
	accountAlt := folderAlternation(accountFolders)
	appAlt := folderAlternation(appFolders)
	name := `[^/]+`

	filePatterns = compileAll(
		`^Setup/Defaults\.yaml$`,
		fmt.Sprintf(`^Setup/%s/%s\.yaml$`, accountAlt, name),
		fmt.Sprintf(`^Setup/Applications/%s/Index\.yaml$`, name),
		fmt.Sprintf(`^Setup/Applications/%s/Defaults\.yaml$`, name),
		fmt.Sprintf(`^Setup/Applications/%s/%s/%s\.yaml$`, name, appAlt, name),
	)

	// Folder paths only appear as DELETE entries of a force-push full sync.
	folderPatterns = compileAll(
		fmt.Sprintf(`^Setup/%s$`, accountAlt),
		fmt.Sprintf(`^Setup/Applications/%s$`, name),
	)
}

func folderAlternation(folders []string) string {
	quoted := make([]string, len(folders))
	for i, f := range folders {
		quoted[i] = regexp.QuoteMeta(f)
	}
	return "(?:" + strings.Join(quoted, "|") + ")"
}

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

// IsValidEntityPath reports whether a path addresses a recognized yaml
// entity file.
func IsValidEntityPath(path string) bool {
	return matchesAny(filePatterns, path)
}

// IsValidFolderPath reports whether a path addresses a deletable folder.
func IsValidFolderPath(path string) bool {
	return matchesAny(folderPatterns, path)
}

func matchesAny(patterns []*regexp.Regexp, path string) bool {
	for _, p := range patterns {
		if p.MatchString(path) {
			return true
		}
	}
	return false
}

// ValidateChangePaths checks every path of a change set. DELETE entries may
// address folders; everything else must address an entity file. RENAME
// validates both sides.
func ValidateChangePaths(changes []model.GitFileChange) error {
	for _, change := range changes {
		if change.ChangeType == model.ChangeTypeDelete {
			if !IsValidEntityPath(change.FilePath) && !IsValidFolderPath(change.FilePath) {
				return fmt.Errorf("invalid path in DELETE change: %s", change.FilePath)
			}
			continue
		}
		if !IsValidEntityPath(change.FilePath) {
			return fmt.Errorf("invalid path in %s change: %s", change.ChangeType, change.FilePath)
		}
		if change.ChangeType == model.ChangeTypeRename && !IsValidEntityPath(change.OldFilePath) {
			return fmt.Errorf("invalid old path in RENAME change: %s", change.OldFilePath)
		}
	}
	return nil
}
