package runner

import (
	"context"
	"fmt"
	"math"
	"time"

	"cv-camera-go/config"
	"cv-camera-go/internal/core/models"
	"cv-camera-go/internal/core/vision"

	log "github.com/sirupsen/logrus"
)

// FrameSource liefert ein dekodiertes Einzelbild einer Kamera
type FrameSource interface {
	Capture(ctx context.Context, address, camera string) (*vision.Frame, error)
}

// Detector führt die Objekterkennung auf einem Frame aus
type Detector interface {
	Detect(ctx context.Context, frame *vision.Frame) ([]models.DetectionRecord, error)
}

// FrameStore speichert einen Frame samt Erkennungen dauerhaft
type FrameStore interface {
	Save(frame *vision.Frame, folder string, detections []models.DetectionRecord) (string, error)
}

// BusPublisher veröffentlicht Nachrichten auf dem Bus (at-least-once,
// Wiederverbindung ist Sache des Clients)
type BusPublisher interface {
	Publish(topic string, payload interface{}) error
}

// PresenceTracker leitet aus Erkennungen Zustandsänderungen ab
type PresenceTracker interface {
	Update(camera string, detections []models.DetectionRecord) []models.StateChangeEvent
}

// attributesPayload ist die Payload des Attribut-Topics bei ON-Ereignissen
type attributesPayload struct {
	Confidence float64 `json:"confidence"`
}

// Runner führt einen vollständigen Zyklus (Aufnahme, Inferenz, Abgleich,
// Veröffentlichung) für eine Kamera aus. Fehler einer Kamera bleiben auf
// deren Zyklus beschränkt.
type Runner struct {
	source  FrameSource
	detect  Detector
	store   FrameStore
	bus     BusPublisher
	tracker PresenceTracker
	timeout time.Duration
	allowed map[string]bool // leer = alle Labels zulassen
}

// NewRunner erstellt einen neuen Runner
func NewRunner(source FrameSource, detector Detector, store FrameStore, bus BusPublisher, tracker PresenceTracker, cfg config.CaptureConfig, labels []string) *Runner {
	allowed := make(map[string]bool, len(labels))
	for _, l := range labels {
		allowed[l] = true
	}

	return &Runner{
		source:  source,
		detect:  detector,
		store:   store,
		bus:     bus,
		tracker: tracker,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		allowed: allowed,
	}
}

// StateTopic ist das Topic für den ON/OFF-Zustand eines Labels.
// Die Discovery-Konfiguration muss exakt dieselben Topics referenzieren.
func StateTopic(prefix, camera, label string) string {
	return fmt.Sprintf("%s/%s/%s/state", prefix, camera, label)
}

// AttributesTopic ist das Topic für die Konfidenz-Attribute eines Labels
func AttributesTopic(prefix, camera, label string) string {
	return fmt.Sprintf("%s/%s/%s/attributes", prefix, camera, label)
}

// RunCycle führt einen Zyklus für die angegebene Kamera aus.
// Aufnahme- oder Inferenzfehler brechen nur diesen Zyklus ab und lassen
// den Präsenzzustand unverändert; Speicher- und Publish-Fehler werden
// geloggt, beeinflussen das Ergebnis aber nicht.
func (r *Runner) RunCycle(ctx context.Context, camera config.CameraConfig) models.CycleOutcome {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	clog := log.WithField("camera", camera.Name)

	// Frame holen
	frame, err := r.capture(ctx, camera)
	if err != nil {
		clog.Warnf("Frame capture failed: %v", err)
		return models.CycleCaptureFailed
	}
	defer frame.Close()

	// Objekterkennung
	raw, err := r.detect.Detect(ctx, frame)
	if err != nil {
		clog.Errorf("Inference failed: %v", err)
		return models.CycleInferenceFailed
	}

	detections := r.normalize(raw)

	// Frame speichern (unabhängig von der Erkennungs-Pipeline; ein Fehler
	// hier darf die Veröffentlichung nicht unterdrücken)
	if camera.OutputFolder != "" && r.store != nil {
		if path, err := r.store.Save(frame, camera.OutputFolder, detections); err != nil {
			clog.Errorf("Failed to persist frame: %v", err)
		} else {
			clog.Debugf("Saved frame to %s", path)
		}
	}

	// Zustandsabgleich und Veröffentlichung
	events := r.tracker.Update(camera.Name, detections)
	r.publishEvents(camera, events)

	clog.WithFields(log.Fields{
		"detections": len(detections),
		"events":     len(events),
	}).Info("Cycle completed")

	return models.CycleSuccess
}

type captureResult struct {
	frame *vision.Frame
	err   error
}

// capture führt die Aufnahme auf einer eigenen Goroutine aus. Öffnen und
// Lesen des Streams sind blockierende CGo-Aufrufe und beachten den Kontext
// nicht; die Deadline muss hier durchgesetzt werden, damit eine hängende
// Kamera nicht den gesamten Durchlauf blockiert. Trifft der Frame nach
// Ablauf noch ein, wird er verworfen.
func (r *Runner) capture(ctx context.Context, camera config.CameraConfig) (*vision.Frame, error) {
	results := make(chan captureResult, 1)
	go func() {
		frame, err := r.source.Capture(ctx, camera.Address, camera.Name)
		results <- captureResult{frame: frame, err: err}
	}()

	select {
	case res := <-results:
		return res.frame, res.err
	case <-ctx.Done():
		go func() {
			if res := <-results; res.frame != nil {
				res.frame.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// publishEvents veröffentlicht alle Zustandsänderungen eines Zyklus.
// Jede Veröffentlichung wird versucht, auch wenn eine vorherige
// fehlgeschlagen ist.
func (r *Runner) publishEvents(camera config.CameraConfig, events []models.StateChangeEvent) {
	for _, event := range events {
		stateTopic := StateTopic(camera.TopicPrefix, camera.Name, event.Label)
		if err := r.bus.Publish(stateTopic, string(event.Transition)); err != nil {
			log.Errorf("Failed to publish state for %s/%s: %v", camera.Name, event.Label, err)
		}

		// Konfidenz nur bei ON-Ereignissen melden
		if event.Transition == models.TransitionOn && event.Confidence != nil {
			attrTopic := AttributesTopic(camera.TopicPrefix, camera.Name, event.Label)
			payload := attributesPayload{Confidence: *event.Confidence}
			if err := r.bus.Publish(attrTopic, payload); err != nil {
				log.Errorf("Failed to publish attributes for %s/%s: %v", camera.Name, event.Label, err)
			}
		}
	}
}

// normalize rundet Konfidenzwerte auf zwei Nachkommastellen und filtert
// auf die verfolgten Labels, damit Laufzeit-Topics und Discovery
// übereinstimmen
func (r *Runner) normalize(raw []models.DetectionRecord) []models.DetectionRecord {
	detections := make([]models.DetectionRecord, 0, len(raw))
	for _, d := range raw {
		if len(r.allowed) > 0 && !r.allowed[d.Label] {
			continue
		}
		detections = append(detections, models.DetectionRecord{
			Label:      d.Label,
			Confidence: math.Round(d.Confidence*100) / 100,
		})
	}
	return detections
}
