package vision

import (
	"time"

	gocv "gocv.io/x/gocv"
)

// Frame ist ein dekodiertes Einzelbild einer Kamera. Der Besitzer des
// Frames ist für das Schließen der Mat verantwortlich.
type Frame struct {
	Mat       gocv.Mat
	Camera    string
	Timestamp time.Time

	closed bool
}

// NewFrame erstellt einen neuen Frame für eine Kamera
func NewFrame(mat gocv.Mat, camera string) *Frame {
	return &Frame{
		Mat:       mat,
		Camera:    camera,
		Timestamp: time.Now(),
	}
}

// Close gibt die zugrunde liegende Mat frei. Mehrfaches Schließen ist
// erlaubt.
func (f *Frame) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	return f.Mat.Close()
}
