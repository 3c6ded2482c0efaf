package repository

import (
	"time"

	"cv-camera-go/internal/core/models"

	"gorm.io/gorm"
)

// CaptureRepository kapselt den Datenbankzugriff auf gespeicherte Frames
type CaptureRepository struct {
	db *gorm.DB
}

// NewCaptureRepository erstellt ein neues Repository
func NewCaptureRepository(db *gorm.DB) *CaptureRepository {
	return &CaptureRepository{db: db}
}

// Create legt einen neuen Capture-Eintrag an
func (r *CaptureRepository) Create(record *models.CaptureRecord) error {
	return r.db.Create(record).Error
}

// Recent liefert die jüngsten Einträge, optional auf eine Kamera gefiltert
func (r *CaptureRepository) Recent(camera string, limit int) ([]models.CaptureRecord, error) {
	query := r.db.Order("created_at DESC").Limit(limit)
	if camera != "" {
		query = query.Where("camera_name = ?", camera)
	}

	var records []models.CaptureRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// OlderThan liefert alle Einträge, die vor dem Stichtag angelegt wurden
func (r *CaptureRepository) OlderThan(cutoff time.Time) ([]models.CaptureRecord, error) {
	var records []models.CaptureRecord
	if err := r.db.Where("created_at < ?", cutoff).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Delete entfernt einen Eintrag
func (r *CaptureRepository) Delete(record *models.CaptureRecord) error {
	return r.db.Delete(record).Error
}

// CountByCamera zählt die Einträge einer Kamera
func (r *CaptureRepository) CountByCamera(camera string) (int64, error) {
	var count int64
	err := r.db.Model(&models.CaptureRecord{}).Where("camera_name = ?", camera).Count(&count).Error
	return count, err
}
