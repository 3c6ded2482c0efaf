package opencv

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"cv-camera-go/config"
	"cv-camera-go/internal/core/models"
	"cv-camera-go/internal/core/vision"

	log "github.com/sirupsen/logrus"
	gocv "gocv.io/x/gocv"
)

// ObjectDetector führt die DNN-basierte Objekterkennung aus (SSD-Format).
// Das Netzwerk wird einmal beim Start geladen; bei identischem Bild und
// Schwellenwert ist das Ergebnis deterministisch.
type ObjectDetector struct {
	cfg        config.DetectorConfig
	net        gocv.Net
	classNames []string
	mutex      sync.Mutex
	ready      bool
}

// NewObjectDetector lädt das Netzwerk und die Klassennamen
func NewObjectDetector(cfg config.DetectorConfig) (*ObjectDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}
	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("model config file not found: %s", cfg.ConfigPath)
		}
	}

	classNames, err := loadClassNames(cfg.LabelsPath)
	if err != nil {
		return nil, fmt.Errorf("could not load class names: %w", err)
	}

	net := gocv.ReadNet(cfg.ModelPath, cfg.ConfigPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", cfg.ModelPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		return nil, fmt.Errorf("failed to set network backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		return nil, fmt.Errorf("failed to set network target: %w", err)
	}

	log.Infof("Object detection network loaded from %s (%d classes)", cfg.ModelPath, len(classNames))

	return &ObjectDetector{
		cfg:        cfg,
		net:        net,
		classNames: classNames,
		ready:      true,
	}, nil
}

// ClassNames gibt alle Klassennamen des Modells zurück
func (d *ObjectDetector) ClassNames() []string {
	names := make([]string, len(d.classNames))
	copy(names, d.classNames)
	return names
}

// Detect erkennt Objekte in einem Frame und liefert Label und Konfidenz
// für jede Erkennung über dem konfigurierten Schwellenwert
func (d *ObjectDetector) Detect(ctx context.Context, frame *vision.Frame) ([]models.DetectionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Das DNN-Netzwerk ist nicht für parallele Forward-Pässe ausgelegt
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.ready {
		return nil, fmt.Errorf("detector is not initialized")
	}
	if frame.Mat.Empty() {
		return nil, fmt.Errorf("frame is empty")
	}

	// Bild in Blob umwandeln für DNN
	blob := gocv.BlobFromImage(
		frame.Mat,
		1.0/127.5, // Scalefactor
		image.Point{X: d.cfg.InputWidth, Y: d.cfg.InputHeight},
		gocv.NewScalar(127.5, 127.5, 127.5, 0), // Mean - normalisieren auf [-1,1]
		true,                                   // SwapRB - BGR zu RGB
		false,                                  // Crop
	)
	defer blob.Close()

	// Forward pass durch das Netzwerk
	d.net.SetInput(blob, "")
	prob := d.net.Forward("")
	defer prob.Close()

	// SSD-Format interpretieren: [img_id, class_id, confidence, left, top, right, bottom]
	results := prob.Reshape(1, prob.Total()/7)
	defer results.Close()

	var detections []models.DetectionRecord
	for i := 0; i < results.Rows(); i++ {
		confidence := float64(results.GetFloatAt(i, 2))
		if confidence < d.cfg.ConfidenceThreshold {
			continue
		}

		classID := int(results.GetFloatAt(i, 1))
		label := d.labelFor(classID)
		if label == "" {
			log.Debugf("Skipping detection with unknown class id %d", classID)
			continue
		}

		detections = append(detections, models.DetectionRecord{
			Label:      label,
			Confidence: confidence,
		})
	}

	log.Debugf("Detected %d object(s) in frame from %s", len(detections), frame.Camera)
	return detections, nil
}

// Close gibt die Ressourcen des Netzwerks frei
func (d *ObjectDetector) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.ready {
		d.ready = false
		return d.net.Close()
	}
	return nil
}

// labelFor übersetzt eine Klassen-ID in den Klassennamen.
// SSD-Modelle zählen die Klassen ab 1, Index 0 ist der Hintergrund.
func (d *ObjectDetector) labelFor(classID int) string {
	idx := classID - 1
	if idx < 0 || idx >= len(d.classNames) {
		return ""
	}
	return d.classNames[idx]
}

// loadClassNames liest die Klassennamen-Datei (eine Klasse pro Zeile)
func loadClassNames(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var names []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			names = append(names, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no class names in %s", path)
	}

	return names, nil
}
