package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cv-camera-go/internal/core/models"
	"cv-camera-go/internal/core/vision"
	"cv-camera-go/internal/db/repository"

	log "github.com/sirupsen/logrus"
	gocv "gocv.io/x/gocv"
	"gorm.io/datatypes"
)

// FrameStore schreibt Frames als JPEG auf die Platte und legt pro
// gespeichertem Frame einen Capture-Eintrag in der Datenbank an
type FrameStore struct {
	repo *repository.CaptureRepository
}

// NewFrameStore erstellt einen neuen FrameStore
func NewFrameStore(repo *repository.CaptureRepository) *FrameStore {
	return &FrameStore{repo: repo}
}

// Save speichert den Frame unter {folder}/{camera}_{timestamp}.jpg und
// gibt den Dateipfad zurück
func (s *FrameStore) Save(frame *vision.Frame, folder string, detections []models.DetectionRecord) (string, error) {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", folder, err)
	}

	timestamp := frame.Timestamp.Format("20060102_150405")
	filename := filepath.Join(folder, fmt.Sprintf("%s_%s.jpg", frame.Camera, timestamp))

	if ok := gocv.IMWrite(filename, frame.Mat); !ok {
		return "", fmt.Errorf("failed to write frame to %s", filename)
	}

	log.Infof("Saved frame to %s", filename)

	// Capture-Eintrag ist Komfort, kein Muss: ein DB-Fehler macht die
	// gespeicherte Datei nicht ungültig
	if s.repo != nil {
		detectionsJSON, err := json.Marshal(detections)
		if err != nil {
			log.Errorf("Failed to marshal detections for capture record: %v", err)
			detectionsJSON = []byte("[]")
		}

		record := &models.CaptureRecord{
			CameraName:     frame.Camera,
			FilePath:       filename,
			DetectionCount: len(detections),
			Detections:     datatypes.JSON(detectionsJSON),
			CreatedAt:      time.Now(),
		}
		if err := s.repo.Create(record); err != nil {
			log.Errorf("Failed to create capture record for %s: %v", filename, err)
		}
	}

	return filename, nil
}
