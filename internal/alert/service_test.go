package alert

import (
	"testing"

	"go_gitsync/internal/db"
	"go_gitsync/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
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

	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return NewService(gdb, logrus.NewEntry(l)), gdb
}

func TestConnectivityAlert_IdempotentOpenClose(t *testing.T) {
	svc, gdb := newTestService(t)

	scope := ConnectivityScope{
		AccountID:      "acct1",
		GitConnectorID: "conn1",
		RepositoryName: "acme/config",
		BranchName:     "main",
	}

	for i := 0; i < 3; i++ {
		if err := svc.OpenConnectivityAlert(scope, "connection refused"); err != nil {
			t.Fatalf("open failed: %v", err)
		}
	}
	var count int64
	gdb.Model(&model.Alert{}).Where("status = ?", model.AlertStatusOpen).Count(&count)
	if count != 1 {
		t.Fatalf("open alerts = %d, want 1", count)
	}

	// A different scope gets its own alert.
	other := scope
	other.BranchName = "develop"
	if err := svc.OpenConnectivityAlert(other, "connection refused"); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	gdb.Model(&model.Alert{}).Where("status = ?", model.AlertStatusOpen).Count(&count)
	if count != 2 {
		t.Fatalf("open alerts = %d, want 2", count)
	}

	if err := svc.CloseConnectivityAlert(scope); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	open, err := svc.ListOpen("acct1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(open) != 1 || open[0].BranchName != "develop" {
		t.Errorf("open alerts = %+v", open)
	}

	var closed model.Alert
	gdb.First(&closed, "status = ?", model.AlertStatusClosed)
	if closed.ClosedAt == nil {
		t.Error("closed alert missing closed_at")
	}

	// Closing again is a no-op.
	if err := svc.CloseConnectivityAlert(scope); err != nil {
		t.Fatalf("repeat close failed: %v", err)
	}
}

func TestSyncErrorAlert_AccountScoped(t *testing.T) {
	svc, gdb := newTestService(t)

	if err := svc.OpenSyncErrorAlert("acct1"); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := svc.OpenSyncErrorAlert("acct1"); err != nil {
		t.Fatalf("repeat open failed: %v", err)
	}
	if err := svc.OpenSyncErrorAlert("acct2"); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	var count int64
	gdb.Model(&model.Alert{}).Where("type = ? AND status = ?", model.AlertTypeGitSyncError, model.AlertStatusOpen).Count(&count)
	if count != 2 {
		t.Fatalf("open alerts = %d, want one per account", count)
	}

	if err := svc.CloseSyncErrorAlert("acct1"); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	open, _ := svc.ListOpen("acct1")
	if len(open) != 0 {
		t.Errorf("acct1 alerts = %+v", open)
	}
	open, _ = svc.ListOpen("acct2")
	if len(open) != 1 {
		t.Errorf("acct2 alerts = %+v", open)
	}
}
