package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cv-camera-go/internal/core/models"
	"cv-camera-go/internal/db/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testRepo(t *testing.T) *repository.CaptureRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&models.CaptureRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repository.NewCaptureRepository(db)
}

func TestNewServiceDisabled(t *testing.T) {
	if s := NewService(testRepo(t), 0, time.Hour); s != nil {
		t.Error("expected nil service for retention_days <= 0")
	}
	if s := NewService(nil, 30, time.Hour); s != nil {
		t.Error("expected nil service for missing repository")
	}
	// Stop auf deaktiviertem Service darf nicht panicken
	var s *Service
	s.StopBackgroundCleanup()
}

func TestRunCleanupCycleDeletesOldCaptures(t *testing.T) {
	repo := testRepo(t)
	dir := t.TempDir()

	oldFile := filepath.Join(dir, "old.jpg")
	if err := os.WriteFile(oldFile, []byte("jpeg"), 0644); err != nil {
		t.Fatalf("write old frame: %v", err)
	}

	if err := repo.Create(&models.CaptureRecord{
		CameraName: "front",
		FilePath:   oldFile,
		CreatedAt:  time.Now().AddDate(0, 0, -10),
	}); err != nil {
		t.Fatalf("create old record: %v", err)
	}
	if err := repo.Create(&models.CaptureRecord{
		CameraName: "front",
		FilePath:   filepath.Join(dir, "fresh.jpg"),
		CreatedAt:  time.Now(),
	}); err != nil {
		t.Fatalf("create fresh record: %v", err)
	}

	s := NewService(repo, 7, time.Hour)
	if s == nil {
		t.Fatal("service unexpectedly disabled")
	}
	s.RunCleanupCycle()

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("old frame file was not deleted")
	}

	count, err := repo.CountByCamera("front")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected only the fresh record to remain, got %d", count)
	}
}

func TestRunCleanupCycleToleratesMissingFiles(t *testing.T) {
	repo := testRepo(t)

	if err := repo.Create(&models.CaptureRecord{
		CameraName: "front",
		FilePath:   "/nonexistent/frame.jpg",
		CreatedAt:  time.Now().AddDate(0, 0, -10),
	}); err != nil {
		t.Fatalf("create record: %v", err)
	}

	s := NewService(repo, 7, time.Hour)
	s.RunCleanupCycle()

	count, err := repo.CountByCamera("front")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("record with missing file must still be deleted, got %d", count)
	}
}
