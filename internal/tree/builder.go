package tree

import (
	"sync"

	"go_gitsync/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Folder names are part of the wire format of the git repository layout and
// must never change.
const (
	SetupFolder            = "Setup"
	ApplicationsFolder     = "Applications"
	DefaultsFile           = "Defaults.yaml"
	IndexFile              = "Index.yaml"
	ServicesFolder         = "Services"
	EnvironmentsFolder     = "Environments"
	WorkflowsFolder        = "Workflows"
	PipelinesFolder        = "Pipelines"
	ProvisionersFolder     = "Provisioners"
	TemplateLibraryFolder  = "Template Library"
	CloudProvidersFolder   = "Cloud Providers"
	ArtifactServersFolder  = "Artifact Servers"
	CollaborationFolder    = "Collaboration Providers"
	VerificationFolder     = "Verification Providers"
	NotificationFolder     = "Notification Groups"
	SourceRepoFolder       = "Source Repo Providers"
	YamlExtension          = ".yaml"
)

type accountSection struct {
	folder string
	kind   model.EntityKind
}

// accountSections is the assembly order of the account-level tree. Sections
// are built concurrently but always joined in this order.
var accountSections = []accountSection{
	{CloudProvidersFolder, model.EntityKindCloudProvider},
	{ArtifactServersFolder, model.EntityKindArtifactServer},
	{CollaborationFolder, model.EntityKindCollaborationProvider},
	{VerificationFolder, model.EntityKindVerificationProvider},
	{NotificationFolder, model.EntityKindNotificationGroup},
	{SourceRepoFolder, model.EntityKindSourceRepoProvider},
	{TemplateLibraryFolder, model.EntityKindTemplate},
}

type appSection struct {
	folder string
	kind   model.EntityKind
}

var appSections = []appSection{
	{ServicesFolder, model.EntityKindService},
	{EnvironmentsFolder, model.EntityKindEnvironment},
	{WorkflowsFolder, model.EntityKindWorkflow},
	{PipelinesFolder, model.EntityKindPipeline},
	{ProvisionersFolder, model.EntityKindProvisioner},
	{TemplateLibraryFolder, model.EntityKindAppTemplate},
}

// Builder assembles the full directory tree of an account from the catalog.
type Builder struct {
	db     *gorm.DB
	logger *logrus.Entry
}

// NewBuilder creates a Builder
func NewBuilder(db *gorm.DB, logger *logrus.Entry) *Builder {
	return &Builder{db: db, logger: logger.WithField("component", "tree-builder")}
}

// BuildAccountTree builds the Setup tree. Every section is loaded
// concurrently; a section whose query fails becomes an empty folder so one
// bad branch never takes down the whole sync.
func (b *Builder) BuildAccountTree(accountID string) *FolderNode {
	sectionFolders := make([]*FolderNode, len(accountSections))
	var defaults *FileNode
	var apps *FolderNode

	var wg sync.WaitGroup
	for i, sec := range accountSections {
		wg.Add(1)
		go func(i int, sec accountSection) {
			defer wg.Done()
			sectionFolders[i] = b.buildAccountSection(accountID, sec)
		}(i, sec)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defaults = b.buildAccountDefaults(accountID)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		apps = b.buildApplicationsFolder(accountID)
	}()
	wg.Wait()

	root := &FolderNode{Name: SetupFolder}
	if defaults != nil {
		root.Add(defaults)
	}
	for _, folder := range sectionFolders {
		root.Add(folder)
	}
	root.Add(apps)
	return root
}

func (b *Builder) buildAccountSection(accountID string, sec accountSection) *FolderNode {
	folder := &FolderNode{Name: sec.folder}

	var entities []model.AccountEntity
	err := b.db.Where("account_id = ? AND kind = ?", accountID, sec.kind).
		Order("name ASC").
		Find(&entities).Error
	if err != nil {
		b.logger.Errorf("Failed to load %s entities for account %s: %v", sec.kind, accountID, err)
		return folder
	}

	for _, e := range entities {
		content, renderErr := RenderBody(e.Name, e.Body)
		folder.Add(&FileNode{Name: e.Name + YamlExtension, Content: content, Err: renderErr})
	}
	return folder
}

func (b *Builder) buildAccountDefaults(accountID string) *FileNode {
	var defaults model.AccountDefaults
	err := b.db.Where("account_id = ?", accountID).First(&defaults).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			b.logger.Errorf("Failed to load account defaults for %s: %v", accountID, err)
		}
		return nil
	}
	content, renderErr := RenderBody(DefaultsFile, defaults.Body)
	return &FileNode{Name: DefaultsFile, Content: content, Err: renderErr}
}

func (b *Builder) buildApplicationsFolder(accountID string) *FolderNode {
	folder := &FolderNode{Name: ApplicationsFolder}

	var applications []model.Application
	err := b.db.Where("account_id = ?", accountID).Order("name ASC").Find(&applications).Error
	if err != nil {
		b.logger.Errorf("Failed to load applications for account %s: %v", accountID, err)
		return folder
	}

	appFolders := make([]*FolderNode, len(applications))
	var wg sync.WaitGroup
	for i, app := range applications {
		wg.Add(1)
		go func(i int, app model.Application) {
			defer wg.Done()
			appFolders[i] = b.BuildApplicationTree(&app)
		}(i, app)
	}
	wg.Wait()

	for _, appFolder := range appFolders {
		folder.Add(appFolder)
	}
	return folder
}

// BuildApplicationTree builds one application's subtree.
func (b *Builder) BuildApplicationTree(app *model.Application) *FolderNode {
	folder := &FolderNode{Name: app.Name}

	indexContent, indexErr := RenderIndex(app.Description)
	folder.Add(&FileNode{Name: IndexFile, Content: indexContent, Err: indexErr})

	var defaults model.AppDefaults
	err := b.db.Where("app_id = ?", app.ID).First(&defaults).Error
	if err == nil {
		content, renderErr := RenderBody(DefaultsFile, defaults.Body)
		folder.Add(&FileNode{Name: DefaultsFile, Content: content, Err: renderErr})
	} else if err != gorm.ErrRecordNotFound {
		b.logger.Errorf("Failed to load defaults for app %s: %v", app.ID, err)
	}

	sectionFolders := make([]*FolderNode, len(appSections))
	var wg sync.WaitGroup
	for i, sec := range appSections {
		wg.Add(1)
		go func(i int, sec appSection) {
			defer wg.Done()
			sectionFolders[i] = b.buildAppSection(app, sec)
		}(i, sec)
	}
	wg.Wait()

	for _, sectionFolder := range sectionFolders {
		folder.Add(sectionFolder)
	}
	return folder
}

func (b *Builder) buildAppSection(app *model.Application, sec appSection) *FolderNode {
	folder := &FolderNode{Name: sec.folder}

	var entities []model.AppEntity
	err := b.db.Where("account_id = ? AND app_id = ? AND kind = ?", app.AccountID, app.ID, sec.kind).
		Order("name ASC").
		Find(&entities).Error
	if err != nil {
		b.logger.Errorf("Failed to load %s entities for app %s: %v", sec.kind, app.ID, err)
		return folder
	}

	for _, e := range entities {
		content, renderErr := RenderBody(e.Name, e.Body)
		folder.Add(&FileNode{Name: e.Name + YamlExtension, Content: content, Err: renderErr})
	}
	return folder
}
