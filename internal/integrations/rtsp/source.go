package rtsp

import (
	"context"
	"fmt"
	"os"

	"cv-camera-go/config"
	"cv-camera-go/internal/core/vision"

	log "github.com/sirupsen/logrus"
	gocv "gocv.io/x/gocv"
)

// Source holt Einzelbilder von RTSP-Kameras. Die Verbindung wird pro
// Aufnahme auf- und sofort wieder abgebaut, damit während der Wartezeit
// zwischen den Zyklen keine Ressourcen belegt bleiben.
type Source struct {
	warmupReads int
}

// NewSource erstellt eine neue Frame-Quelle
func NewSource(cfg config.CaptureConfig) *Source {
	// RTSP über TCP erzwingen, UDP verliert bei vielen Kameras Frames
	os.Setenv("OPENCV_FFMPEG_CAPTURE_OPTIONS", "rtsp_transport;tcp")

	return &Source{
		warmupReads: cfg.WarmupReads,
	}
}

// Capture verbindet sich mit dem Stream, verwirft gepufferte Frames und
// liefert ein aktuelles Einzelbild. Netzwerkkameras puffern veraltete
// Frames; erst nach den Warm-up-Reads ist das gelieferte Bild zeitnah.
// Fehlschläge während der Warm-up-Phase werden ignoriert, nur der letzte
// Read entscheidet über Erfolg oder Misserfolg.
func (s *Source) Capture(ctx context.Context, address, camera string) (*vision.Frame, error) {
	capture, err := gocv.OpenVideoCapture(address)
	if err != nil {
		return nil, fmt.Errorf("could not open stream at %s: %w", address, err)
	}
	defer capture.Close()

	if !capture.IsOpened() {
		return nil, fmt.Errorf("stream at %s is not opened", address)
	}

	// Gepufferte Frames verwerfen (auch für Auto-Exposure der Kamera)
	discard := gocv.NewMat()
	defer discard.Close()
	for i := 0; i < s.warmupReads; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if ok := capture.Read(&discard); !ok {
			log.WithField("camera", camera).Debugf("Warm-up read %d returned no frame", i+1)
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Der eigentliche Frame für die Inferenz
	mat := gocv.NewMat()
	if ok := capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("failed to retrieve frame from %s", address)
	}

	return vision.NewFrame(mat, camera), nil
}
