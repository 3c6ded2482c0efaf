package tracker

import (
	"sort"
	"sync"

	"cv-camera-go/internal/core/models"

	log "github.com/sirupsen/logrus"
)

// PresenceTracker hält pro Kamera die Menge der zuletzt erkannten Labels
// und leitet daraus Zustandsänderungen ab. Die Menge einer Kamera spiegelt
// immer den letzten erfolgreichen Zyklus wider; bei fehlgeschlagenen Zyklen
// wird Update nicht aufgerufen und der Zustand bleibt eingefroren.
//
// Pro Kamera darf höchstens ein Zyklus gleichzeitig laufen. Der interne
// Mutex schützt lediglich die Map selbst, falls Zyklen verschiedener
// Kameras parallel ausgeführt werden.
type PresenceTracker struct {
	mu     sync.Mutex
	states map[string]map[string]struct{}
}

// NewPresenceTracker erstellt einen neuen PresenceTracker
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		states: make(map[string]map[string]struct{}),
	}
}

// Register legt den leeren Anfangszustand für eine Kamera an. Beim ersten
// erfolgreichen Zyklus feuert dadurch jedes erkannte Label ein ON-Ereignis
// (initiale Präsenzmeldung).
func (t *PresenceTracker) Register(camera string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.states[camera]; !ok {
		t.states[camera] = make(map[string]struct{})
	}
}

// Update vergleicht die Erkennungen eines Zyklus mit dem gespeicherten
// Zustand der Kamera und liefert die daraus resultierenden
// Zustandsänderungen. Doppelte Labels werden zusammengefasst; bei
// unterschiedlichen Konfidenzwerten für dasselbe Label gewinnt der höchste.
// Labels, die in beiden Zyklen vorhanden sind, erzeugen kein Ereignis.
func (t *PresenceTracker) Update(camera string, detections []models.DetectionRecord) []models.StateChangeEvent {
	// Labels zusammenfassen, höchste Konfidenz pro Label behalten
	confidences := make(map[string]float64, len(detections))
	for _, d := range detections {
		if best, ok := confidences[d.Label]; !ok || d.Confidence > best {
			confidences[d.Label] = d.Confidence
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.states[camera]
	if !ok {
		current = make(map[string]struct{})
	}

	var events []models.StateChangeEvent

	// Neu erschienene Labels
	for label, confidence := range confidences {
		if _, present := current[label]; present {
			continue
		}
		c := confidence
		events = append(events, models.StateChangeEvent{
			Camera:     camera,
			Label:      label,
			Transition: models.TransitionOn,
			Confidence: &c,
		})
	}

	// Verschwundene Labels
	for label := range current {
		if _, present := confidences[label]; present {
			continue
		}
		events = append(events, models.StateChangeEvent{
			Camera:     camera,
			Label:      label,
			Transition: models.TransitionOff,
		})
	}

	// Stabile Reihenfolge für Logs und Tests
	sort.Slice(events, func(i, j int) bool {
		if events[i].Transition != events[j].Transition {
			return events[i].Transition == models.TransitionOn
		}
		return events[i].Label < events[j].Label
	})

	// Einziger Mutationspunkt: neuen Zustand übernehmen
	next := make(map[string]struct{}, len(confidences))
	for label := range confidences {
		next[label] = struct{}{}
	}
	t.states[camera] = next

	if len(events) > 0 {
		log.WithFields(log.Fields{
			"camera": camera,
			"events": len(events),
		}).Debug("Presence state changed")
	}

	return events
}

// CurrentLabels gibt eine Kopie der aktuell präsenten Labels einer Kamera zurück
func (t *PresenceTracker) CurrentLabels(camera string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.states[camera]
	if !ok {
		return nil
	}

	labels := make([]string, 0, len(state))
	for label := range state {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
