package cleanup

import (
	"errors"
	"os"
	"time"

	"cv-camera-go/internal/core/models"
	"cv-camera-go/internal/db/repository"

	log "github.com/sirupsen/logrus"
)

// Service handles the automatic cleanup of old captures.
type Service struct {
	repo          *repository.CaptureRepository
	retentionDays int
	checkInterval time.Duration
	stopChan      chan struct{} // Channel to signal stopping the background routine
}

// NewService creates a new cleanup service.
func NewService(repo *repository.CaptureRepository, retentionDays int, checkInterval time.Duration) *Service {
	if retentionDays <= 0 {
		log.Info("Automatic cleanup disabled (retention_days <= 0).")
		return nil // Return nil if cleanup is disabled
	}
	if repo == nil {
		log.Error("Cannot initialize cleanup service: repository is nil")
		return nil
	}
	log.Infof("Initializing cleanup service: RetentionDays=%d, CheckInterval=%s", retentionDays, checkInterval)
	return &Service{
		repo:          repo,
		retentionDays: retentionDays,
		checkInterval: checkInterval,
		stopChan:      make(chan struct{}),
	}
}

// StartBackgroundCleanup starts a goroutine that periodically runs the cleanup cycle.
func (s *Service) StartBackgroundCleanup() {
	if s == nil {
		return // Service was not initialized (cleanup disabled)
	}
	log.Info("Starting background cleanup routine...")

	// Run cleanup once immediately on start
	go func() {
		log.Info("Running initial cleanup check on startup...")
		s.RunCleanupCycle()
	}()

	ticker := time.NewTicker(s.checkInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				log.Info("Running scheduled cleanup cycle...")
				s.RunCleanupCycle()
			case <-s.stopChan:
				log.Info("Stopping background cleanup routine.")
				return
			}
		}
	}()
}

// StopBackgroundCleanup signals the background cleanup routine to stop.
func (s *Service) StopBackgroundCleanup() {
	if s == nil || s.stopChan == nil {
		return
	}
	select {
	case <-s.stopChan:
		// Already closed
	default:
		close(s.stopChan)
	}
}

// RunCleanupCycle performs one cleanup cycle, deleting captures older than the retention period.
func (s *Service) RunCleanupCycle() {
	if s == nil || s.retentionDays <= 0 {
		log.Debug("Skipping cleanup cycle: service not initialized or cleanup disabled.")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	log.Infof("Cleanup: Deleting captures older than %s", cutoff.Format(time.RFC3339))

	records, err := s.repo.OlderThan(cutoff)
	if err != nil {
		log.Errorf("Cleanup: Error finding old captures: %v", err)
		return
	}

	if len(records) == 0 {
		log.Info("Cleanup: No old captures found to delete.")
		return
	}

	log.Infof("Cleanup: Found %d capture(s) older than retention period to delete.", len(records))
	deletedCount := 0
	failedCount := 0

	for _, record := range records {
		if err := s.deleteCapture(record); err != nil {
			log.Errorf("Cleanup: Failed to delete capture ID %d (Path: %s): %v", record.ID, record.FilePath, err)
			failedCount++
		} else {
			deletedCount++
		}
	}

	log.Infof("Cleanup cycle finished. Successfully deleted: %d, Failed: %d", deletedCount, failedCount)
}

// deleteCapture removes the frame file and the database record for a single capture.
func (s *Service) deleteCapture(record models.CaptureRecord) error {
	// Delete the frame file first; a missing file is not an error
	if record.FilePath != "" {
		if err := os.Remove(record.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			// Log but continue, the DB record should still be cleaned up
			log.Warnf("Cleanup: Failed to delete frame file '%s' for capture ID %d: %v", record.FilePath, record.ID, err)
		}
	}

	if err := s.repo.Delete(&record); err != nil {
		return err
	}

	log.Debugf("Cleanup: Deleted capture ID %d (Path: %s)", record.ID, record.FilePath)
	return nil
}
