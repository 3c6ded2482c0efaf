package models

import (
	"time"

	"gorm.io/datatypes"
)

// Transition beschreibt den Übergang eines Labels zwischen zwei Zyklen
type Transition string

const (
	// TransitionOn wird gemeldet, wenn ein Label neu erkannt wurde
	TransitionOn Transition = "ON"
	// TransitionOff wird gemeldet, wenn ein zuvor erkanntes Label verschwunden ist
	TransitionOff Transition = "OFF"
)

// DetectionRecord ist das normalisierte Ergebnis eines Inferenz-Durchlaufs
// für ein einzelnes erkanntes Objekt. Die Konfidenz ist auf zwei
// Nachkommastellen gerundet, damit die Werte auf dem Bus stabil bleiben.
type DetectionRecord struct {
	Label      string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

// StateChangeEvent beschreibt eine Zustandsänderung für ein Label einer
// Kamera. Confidence ist nur bei TransitionOn gesetzt.
type StateChangeEvent struct {
	Camera     string
	Label      string
	Transition Transition
	Confidence *float64
}

// CycleOutcome ist das Ergebnis eines einzelnen Kamera-Zyklus
type CycleOutcome int

const (
	// CycleSuccess: Aufnahme und Inferenz waren erfolgreich
	CycleSuccess CycleOutcome = iota
	// CycleCaptureFailed: es konnte kein Frame geholt werden
	CycleCaptureFailed
	// CycleInferenceFailed: der Detektor hat einen Fehler gemeldet
	CycleInferenceFailed
)

// String gibt den Namen des Zyklus-Ergebnisses zurück
func (o CycleOutcome) String() string {
	switch o {
	case CycleSuccess:
		return "success"
	case CycleCaptureFailed:
		return "capture_failed"
	case CycleInferenceFailed:
		return "inference_failed"
	default:
		return "unknown"
	}
}

// CaptureRecord ist der Datenbankeintrag für einen gespeicherten Frame
type CaptureRecord struct {
	ID             uint           `gorm:"primarykey" json:"id"`
	CameraName     string         `gorm:"index" json:"camera_name"`
	FilePath       string         `json:"file_path"`
	DetectionCount int            `json:"detection_count"`
	Detections     datatypes.JSON `json:"detections"` // Serialisierte DetectionRecord-Liste
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
}
