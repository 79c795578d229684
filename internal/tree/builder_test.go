package tree

import (
	"strings"
	"testing"

	"go_gitsync/internal/db"
	"go_gitsync/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return gdb
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return logrus.NewEntry(l)
}

func seedCatalog(t *testing.T, gdb *gorm.DB) {
	t.Helper()

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	must(gdb.Create(&model.AccountEntity{
		ID: uuid.NewString(), AccountID: "acct1", Kind: model.EntityKindCloudProvider,
		Name: "aws-prod", Body: "type: AWS\nregion: us-east-1\n",
	}).Error)
	must(gdb.Create(&model.AccountEntity{
		ID: uuid.NewString(), AccountID: "acct1", Kind: model.EntityKindArtifactServer,
		Name: "nexus", Body: "type: NEXUS\nurl: https://nexus.internal\n",
	}).Error)
	must(gdb.Create(&model.AccountDefaults{
		AccountID: "acct1", Body: "defaults:\n  artifactPath: /builds\n",
	}).Error)

	must(gdb.Create(&model.Application{
		ID: "app1", AccountID: "acct1", Name: "payments", Description: "payment service",
	}).Error)
	must(gdb.Create(&model.AppEntity{
		ID: uuid.NewString(), AccountID: "acct1", AppID: "app1",
		Kind: model.EntityKindService, Name: "api", Body: "type: SERVICE\nartifactType: DOCKER\n",
	}).Error)
	must(gdb.Create(&model.AppEntity{
		ID: uuid.NewString(), AccountID: "acct1", AppID: "app1",
		Kind: model.EntityKindEnvironment, Name: "prod", Body: "type: ENVIRONMENT\n",
	}).Error)
}

func changePaths(changes []model.GitFileChange) []string {
	paths := make([]string, 0, len(changes))
	for _, c := range changes {
		paths = append(paths, c.FilePath)
	}
	return paths
}

func TestBuildAccountTree_Layout(t *testing.T) {
	gdb := newTestDB(t)
	seedCatalog(t, gdb)
	builder := NewBuilder(gdb, testLogger())

	root := builder.BuildAccountTree("acct1")
	if root.Name != SetupFolder {
		t.Fatalf("root = %q, want %q", root.Name, SetupFolder)
	}

	changes, failures, err := TraverseDirectory(root, "", false)
	if err != nil {
		t.Fatalf("traverse failed: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected render failures: %v", failures)
	}

	want := []string{
		"Setup/Defaults.yaml",
		"Setup/Cloud Providers/aws-prod.yaml",
		"Setup/Artifact Servers/nexus.yaml",
		"Setup/Applications/payments/Index.yaml",
		"Setup/Applications/payments/Services/api.yaml",
		"Setup/Applications/payments/Environments/prod.yaml",
	}
	got := changePaths(changes)
	for _, path := range want {
		if !contains(got, path) {
			t.Errorf("missing path %q in %v", path, got)
		}
	}

	// Every change in a full build is an ADD.
	for _, c := range changes {
		if c.ChangeType != model.ChangeTypeAdd {
			t.Errorf("change %s type = %s, want ADD", c.FilePath, c.ChangeType)
		}
	}
}

func TestBuildAccountTree_DeterministicOrder(t *testing.T) {
	gdb := newTestDB(t)
	seedCatalog(t, gdb)
	builder := NewBuilder(gdb, testLogger())

	first, _, err := TraverseDirectory(builder.BuildAccountTree("acct1"), "", false)
	if err != nil {
		t.Fatalf("traverse failed: %v", err)
	}

	// Sections load concurrently but must assemble identically every time.
	for i := 0; i < 5; i++ {
		again, _, err := TraverseDirectory(builder.BuildAccountTree("acct1"), "", false)
		if err != nil {
			t.Fatalf("traverse failed: %v", err)
		}
		if len(again) != len(first) {
			t.Fatalf("run %d produced %d changes, want %d", i, len(again), len(first))
		}
		for j := range first {
			if again[j].FilePath != first[j].FilePath {
				t.Fatalf("run %d path[%d] = %q, want %q", i, j, again[j].FilePath, first[j].FilePath)
			}
		}
	}
}

func TestTraverseDirectory_RenderFailure(t *testing.T) {
	gdb := newTestDB(t)
	seedCatalog(t, gdb)
	// Malformed body: tabs are invalid in yaml.
	if err := gdb.Create(&model.AccountEntity{
		ID: uuid.NewString(), AccountID: "acct1", Kind: model.EntityKindCloudProvider,
		Name: "broken", Body: "\tnot: yaml: [",
	}).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	builder := NewBuilder(gdb, testLogger())
	root := builder.BuildAccountTree("acct1")

	// Default mode records the failure and keeps going.
	changes, failures, err := TraverseDirectory(root, "", false)
	if err != nil {
		t.Fatalf("traverse failed: %v", err)
	}
	if len(failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(failures))
	}
	if failures[0].FilePath != "Setup/Cloud Providers/broken.yaml" {
		t.Errorf("failure path = %q", failures[0].FilePath)
	}
	if contains(changePaths(changes), "Setup/Cloud Providers/broken.yaml") {
		t.Error("broken file still emitted as a change")
	}
	if !contains(changePaths(changes), "Setup/Cloud Providers/aws-prod.yaml") {
		t.Error("sibling of broken file was dropped")
	}

	// Fail-fast mode aborts instead.
	_, _, err = TraverseDirectory(root, "", true)
	if err == nil {
		t.Error("expected fail-fast traversal to return an error")
	}
}

func TestFullSyncChanges_ForcePushPrependsDeletes(t *testing.T) {
	gdb := newTestDB(t)
	seedCatalog(t, gdb)
	builder := NewBuilder(gdb, testLogger())

	changes, failures, err := builder.FullSyncChanges("acct1", true, false)
	if err != nil {
		t.Fatalf("full sync failed: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}

	var deleteCount int
	for i, c := range changes {
		if c.ChangeType != model.ChangeTypeDelete {
			break
		}
		deleteCount = i + 1
	}
	if deleteCount == 0 {
		t.Fatal("expected DELETE entries at the head of the change list")
	}
	for _, c := range changes[deleteCount:] {
		if c.ChangeType == model.ChangeTypeDelete {
			t.Fatalf("DELETE %s found after ADD entries", c.FilePath)
		}
	}

	deletes := changePaths(changes[:deleteCount])
	for _, want := range []string{
		"Setup/Defaults.yaml",
		"Setup/Cloud Providers",
		"Setup/Applications/payments",
	} {
		if !contains(deletes, want) {
			t.Errorf("missing DELETE for %q in %v", want, deletes)
		}
	}

	// Without force push there are no deletes at all.
	plain, _, err := builder.FullSyncChanges("acct1", false, false)
	if err != nil {
		t.Fatalf("full sync failed: %v", err)
	}
	for _, c := range plain {
		if c.ChangeType == model.ChangeTypeDelete {
			t.Errorf("unexpected DELETE %s without force push", c.FilePath)
		}
	}
}

func TestRenderBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid document", "type: SERVICE\nname: api\n", false},
		{"empty body", "   \n", true},
		{"invalid yaml", "a: [unclosed\n\tb", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := RenderBody("x", tt.body)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("render failed: %v", err)
			}
			if out != tt.body {
				t.Errorf("body rewritten: %q", out)
			}
		})
	}
}

func TestRenderIndex(t *testing.T) {
	out, err := RenderIndex("payment service")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	for _, want := range []string{"harnessApiVersion: \"1.0\"", "type: APPLICATION", "description: payment service"} {
		if !strings.Contains(out, want) {
			t.Errorf("index document missing %q:\n%s", want, out)
		}
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
