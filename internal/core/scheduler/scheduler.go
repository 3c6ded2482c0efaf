package scheduler

import (
	"context"
	"sync"
	"time"

	"cv-camera-go/config"
	"cv-camera-go/internal/core/models"

	log "github.com/sirupsen/logrus"
)

// Scheduling-Modi
const (
	// ModePass berechnet die Wartezeit einmal pro Durchlauf über alle Kameras
	ModePass = "pass"
	// ModeCamera berechnet die Wartezeit nach jeder einzelnen Kamera
	ModeCamera = "camera"
)

// CycleFunc führt einen Zyklus für eine Kamera aus
type CycleFunc func(ctx context.Context, camera config.CameraConfig) models.CycleOutcome

// CameraStatus ist der letzte bekannte Zustand einer Kamera
type CameraStatus struct {
	Camera      string              `json:"camera"`
	LastOutcome models.CycleOutcome `json:"-"`
	Outcome     string              `json:"outcome"`
	Duration    time.Duration       `json:"-"`
	DurationMS  int64               `json:"duration_ms"`
	LastRun     time.Time           `json:"last_run"`
}

// Scheduler ruft alle Kameras in fester Reihenfolge zyklisch auf und hält
// dabei eine wanduhr-genaue Kadenz: die Wartezeit ist das konfigurierte
// Intervall abzüglich der tatsächlichen Laufzeit, nie negativ. Dauert ein
// Durchlauf länger als das Intervall, startet der nächste sofort.
type Scheduler struct {
	cameras  []config.CameraConfig
	interval time.Duration
	mode     string
	cycle    CycleFunc

	mu        sync.Mutex
	statuses  map[string]CameraStatus
	passCount uint64

	// afterPass wird nach jedem vollständigen Durchlauf aufgerufen (optional)
	afterPass func()
}

// New erstellt einen neuen Scheduler
func New(cameras []config.CameraConfig, cfg config.ScheduleConfig, cycle CycleFunc) *Scheduler {
	return &Scheduler{
		cameras:  cameras,
		interval: time.Duration(cfg.IntervalSeconds) * time.Second,
		mode:     cfg.Mode,
		cycle:    cycle,
		statuses: make(map[string]CameraStatus, len(cameras)),
	}
}

// SetAfterPass registriert einen Callback, der nach jedem Durchlauf läuft
func (s *Scheduler) SetAfterPass(fn func()) {
	s.afterPass = fn
}

// Run führt die Abtast-Schleife aus, bis der Kontext abgebrochen wird
func (s *Scheduler) Run(ctx context.Context) {
	log.Infof("Starting scheduler: %d camera(s), interval %s, mode %q", len(s.cameras), s.interval, s.mode)

	for {
		if s.mode == ModeCamera {
			// Ein Intervall pro Kamera
			for _, camera := range s.cameras {
				if ctx.Err() != nil {
					return
				}
				start := time.Now()
				s.runCamera(ctx, camera)
				if !s.sleep(ctx, time.Since(start)) {
					return
				}
			}
		} else {
			// Ein Intervall pro Durchlauf über alle Kameras
			start := time.Now()
			for _, camera := range s.cameras {
				if ctx.Err() != nil {
					return
				}
				s.runCamera(ctx, camera)
			}
			if !s.sleep(ctx, time.Since(start)) {
				return
			}
		}

		s.mu.Lock()
		s.passCount++
		s.mu.Unlock()

		if s.afterPass != nil {
			s.afterPass()
		}
	}
}

// runCamera führt einen Zyklus aus und fängt Panics ab, damit eine
// fehlerhafte Kamera weder den Durchlauf noch den Prozess beendet
func (s *Scheduler) runCamera(ctx context.Context, camera config.CameraConfig) {
	start := time.Now()
	outcome := models.CycleCaptureFailed

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.WithField("camera", camera.Name).Errorf("Cycle panicked: %v", r)
			}
		}()
		outcome = s.cycle(ctx, camera)
	}()

	duration := time.Since(start)

	if outcome != models.CycleSuccess {
		log.WithFields(log.Fields{
			"camera":  camera.Name,
			"outcome": outcome.String(),
		}).Warn("Cycle did not complete")
	}

	s.mu.Lock()
	s.statuses[camera.Name] = CameraStatus{
		Camera:      camera.Name,
		LastOutcome: outcome,
		Outcome:     outcome.String(),
		Duration:    duration,
		DurationMS:  duration.Milliseconds(),
		LastRun:     start,
	}
	s.mu.Unlock()
}

// sleep wartet den Rest des Intervalls ab. Bei Überschreitung des
// Intervalls ist die Wartezeit null, so dass sich kein zusätzlicher
// Versatz ansammelt. Gibt false zurück, wenn der Kontext abgebrochen wurde.
func (s *Scheduler) sleep(ctx context.Context, elapsed time.Duration) bool {
	remaining := s.interval - elapsed
	if remaining <= 0 {
		log.Debugf("Pass took %s, exceeding interval %s; starting next pass immediately", elapsed, s.interval)
		return ctx.Err() == nil
	}

	select {
	case <-ctx.Done():
		return false
	case <-time.After(remaining):
		return true
	}
}

// Statuses gibt den letzten Zustand aller Kameras in stabiler Reihenfolge zurück
func (s *Scheduler) Statuses() []CameraStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]CameraStatus, 0, len(s.cameras))
	for _, camera := range s.cameras {
		if st, ok := s.statuses[camera.Name]; ok {
			statuses = append(statuses, st)
		}
	}
	return statuses
}

// PassCount gibt die Anzahl der abgeschlossenen Durchläufe zurück
func (s *Scheduler) PassCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passCount
}
