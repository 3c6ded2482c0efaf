package repository

import (
	"testing"
	"time"

	"cv-camera-go/internal/core/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testRepo(t *testing.T) *CaptureRepository {
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
	return NewCaptureRepository(db)
}

func TestCreateAndRecent(t *testing.T) {
	repo := testRepo(t)

	for i, camera := range []string{"front", "front", "back"} {
		record := &models.CaptureRecord{
			CameraName: camera,
			FilePath:   "/data/frames/" + camera + ".jpg",
			CreatedAt:  time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := repo.Create(record); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	records, err := repo.Recent("front", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records for front, got %d", len(records))
	}

	all, err := repo.Recent("", 10)
	if err != nil {
		t.Fatalf("recent all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}

	limited, err := repo.Recent("", 1)
	if err != nil {
		t.Fatalf("recent limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d records", len(limited))
	}
}

func TestOlderThanAndDelete(t *testing.T) {
	repo := testRepo(t)

	old := &models.CaptureRecord{
		CameraName: "front",
		FilePath:   "/data/frames/old.jpg",
		CreatedAt:  time.Now().AddDate(0, 0, -40),
	}
	fresh := &models.CaptureRecord{
		CameraName: "front",
		FilePath:   "/data/frames/fresh.jpg",
		CreatedAt:  time.Now(),
	}
	if err := repo.Create(old); err != nil {
		t.Fatalf("create old: %v", err)
	}
	if err := repo.Create(fresh); err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	cutoff := time.Now().AddDate(0, 0, -30)
	records, err := repo.OlderThan(cutoff)
	if err != nil {
		t.Fatalf("older than: %v", err)
	}
	if len(records) != 1 || records[0].FilePath != "/data/frames/old.jpg" {
		t.Fatalf("expected only the old record, got %v", records)
	}

	if err := repo.Delete(&records[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}

	count, err := repo.CountByCamera("front")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 remaining record, got %d", count)
	}
}
