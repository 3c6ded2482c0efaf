package tracker

import (
	"testing"

	"cv-camera-go/internal/core/models"
)

func det(label string, confidence float64) models.DetectionRecord {
	return models.DetectionRecord{Label: label, Confidence: confidence}
}

func eventMap(events []models.StateChangeEvent) map[string]models.Transition {
	m := make(map[string]models.Transition, len(events))
	for _, e := range events {
		m[e.Label] = e.Transition
	}
	return m
}

func TestFirstCycleEmitsOnForEveryLabel(t *testing.T) {
	tr := NewPresenceTracker()
	tr.Register("front")

	events := tr.Update("front", []models.DetectionRecord{det("cat", 0.7), det("dog", 0.9)})

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, e := range events {
		if e.Transition != models.TransitionOn {
			t.Errorf("expected ON for %q, got %s", e.Label, e.Transition)
		}
		if e.Confidence == nil {
			t.Errorf("expected confidence for ON event %q", e.Label)
		}
	}
}

func TestDiffSemantics(t *testing.T) {
	tests := []struct {
		name   string
		first  []models.DetectionRecord
		second []models.DetectionRecord
		want   map[string]models.Transition
	}{
		{
			name:   "label appears",
			first:  []models.DetectionRecord{det("cat", 0.6)},
			second: []models.DetectionRecord{det("cat", 0.6), det("dog", 0.8)},
			want:   map[string]models.Transition{"dog": models.TransitionOn},
		},
		{
			name:   "label disappears",
			first:  []models.DetectionRecord{det("cat", 0.6), det("dog", 0.8)},
			second: []models.DetectionRecord{det("dog", 0.8)},
			want:   map[string]models.Transition{"cat": models.TransitionOff},
		},
		{
			name:   "unchanged set emits nothing",
			first:  []models.DetectionRecord{det("cat", 0.6)},
			second: []models.DetectionRecord{det("cat", 0.9)},
			want:   map[string]models.Transition{},
		},
		{
			name:   "full turnover",
			first:  []models.DetectionRecord{det("cat", 0.6)},
			second: []models.DetectionRecord{det("person", 0.8)},
			want: map[string]models.Transition{
				"person": models.TransitionOn,
				"cat":    models.TransitionOff,
			},
		},
		{
			name:   "empty detections clear everything",
			first:  []models.DetectionRecord{det("cat", 0.6), det("dog", 0.8)},
			second: nil,
			want: map[string]models.Transition{
				"cat": models.TransitionOff,
				"dog": models.TransitionOff,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewPresenceTracker()
			tr.Register("cam")
			tr.Update("cam", tt.first)

			events := tr.Update("cam", tt.second)
			got := eventMap(events)

			if len(got) != len(tt.want) {
				t.Fatalf("expected %d events, got %d (%v)", len(tt.want), len(got), got)
			}
			for label, transition := range tt.want {
				if got[label] != transition {
					t.Errorf("label %q: expected %s, got %s", label, transition, got[label])
				}
			}
		})
	}
}

func TestDuplicateLabelsKeepHighestConfidence(t *testing.T) {
	tr := NewPresenceTracker()
	tr.Register("cam")

	events := tr.Update("cam", []models.DetectionRecord{det("cat", 0.6), det("cat", 0.9)})

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Confidence == nil || *events[0].Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %v", events[0].Confidence)
	}
}

func TestOffEventsCarryNoConfidence(t *testing.T) {
	tr := NewPresenceTracker()
	tr.Register("cam")
	tr.Update("cam", []models.DetectionRecord{det("cat", 0.6)})

	events := tr.Update("cam", nil)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Transition != models.TransitionOff {
		t.Fatalf("expected OFF, got %s", events[0].Transition)
	}
	if events[0].Confidence != nil {
		t.Errorf("OFF event must not carry a confidence, got %v", *events[0].Confidence)
	}
}

func TestCamerasAreIsolated(t *testing.T) {
	tr := NewPresenceTracker()
	tr.Register("front")
	tr.Register("back")

	tr.Update("front", []models.DetectionRecord{det("cat", 0.6)})
	events := tr.Update("back", []models.DetectionRecord{det("cat", 0.6)})

	// Der Zustand der einen Kamera darf die andere nicht beeinflussen
	if len(events) != 1 || events[0].Transition != models.TransitionOn {
		t.Fatalf("expected independent ON event for second camera, got %v", events)
	}

	events = tr.Update("front", nil)
	if len(events) != 1 || events[0].Transition != models.TransitionOff {
		t.Fatalf("expected OFF for first camera, got %v", events)
	}

	if got := tr.CurrentLabels("back"); len(got) != 1 || got[0] != "cat" {
		t.Errorf("second camera state changed unexpectedly: %v", got)
	}
}

func TestStateFrozenWhenUpdateSkipped(t *testing.T) {
	tr := NewPresenceTracker()
	tr.Register("cam")
	tr.Update("cam", []models.DetectionRecord{det("cat", 0.6)})

	// Ein fehlgeschlagener Zyklus ruft Update nicht auf; beim nächsten
	// erfolgreichen Zyklus wird weiter gegen den alten Zustand verglichen
	events := tr.Update("cam", []models.DetectionRecord{det("cat", 0.7)})
	if len(events) != 0 {
		t.Fatalf("expected no events for unchanged label, got %v", events)
	}
}
