package homeassistant

import (
	"fmt"
	"strings"

	"cv-camera-go/config"
	"cv-camera-go/internal/core/runner"

	log "github.com/sirupsen/logrus"
)

// Constants for Home Assistant MQTT Discovery
const (
	// Component-Typ für binäre Sensoren (Präsenz pro Label)
	ComponentBinarySensor = "binary_sensor"
)

// RetainPublisher veröffentlicht retained Nachrichten auf dem Bus
type RetainPublisher interface {
	PublishRetain(topic string, payload interface{}) error
}

// BinarySensorConfig repräsentiert die MQTT-Discovery-Konfiguration für
// einen binären Sensor in Home Assistant
type BinarySensorConfig struct {
	Name                string  `json:"name"`
	UniqueID            string  `json:"unique_id"`
	StateTopic          string  `json:"state_topic"`
	JSONAttributesTopic string  `json:"json_attributes_topic,omitempty"`
	PayloadOn           string  `json:"payload_on"`
	PayloadOff          string  `json:"payload_off"`
	DeviceClass         string  `json:"device_class,omitempty"`
	Icon                string  `json:"icon,omitempty"`
	AvailabilityTopic   string  `json:"availability_topic,omitempty"`
	PayloadAvailable    string  `json:"payload_available,omitempty"`
	PayloadNotAvailable string  `json:"payload_not_available,omitempty"`
	Device              *Device `json:"device,omitempty"`
}

// Device repräsentiert die Geräteinformationen für Home Assistant
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// DiscoveryManager verwaltet die Home Assistant MQTT Discovery.
// Die State- und Attribut-Topics werden über die Topic-Funktionen des
// Runners gebildet, damit Discovery und Laufzeit-Topics nicht
// auseinanderlaufen können.
type DiscoveryManager struct {
	publisher RetainPublisher
	cfg       config.MQTTConfig
}

// NewDiscoveryManager erstellt einen neuen Manager für Home Assistant Discovery
func NewDiscoveryManager(publisher RetainPublisher, cfg config.MQTTConfig) *DiscoveryManager {
	return &DiscoveryManager{
		publisher: publisher,
		cfg:       cfg,
	}
}

// RegisterCameras veröffentlicht für jede Kamera und jedes verfolgte Label
// eine retained Discovery-Konfiguration. Wiederholte Aufrufe überschreiben
// die vorhandenen retained Nachrichten und sind daher gefahrlos.
func (dm *DiscoveryManager) RegisterCameras(cameras []config.CameraConfig, labels []string) error {
	if !dm.cfg.HomeAssistant.Enabled {
		log.Info("Home Assistant discovery is disabled in configuration")
		return nil
	}

	for _, camera := range cameras {
		// Ein Device-Eintrag pro Kamera, damit alle Label-Sensoren einer
		// Kamera in Home Assistant gruppiert werden
		device := &Device{
			Identifiers:  []string{fmt.Sprintf("cv_camera_%s", camera.Name)},
			Name:         fmt.Sprintf("Object Detection Camera - %s", camera.Name),
			Manufacturer: "cv-camera-go",
			Model:        "DNN Object Detection",
		}

		for _, label := range labels {
			if err := dm.registerLabelSensor(camera, label, device); err != nil {
				log.Errorf("Failed to register sensor for %s/%s: %v", camera.Name, label, err)
			}
		}
	}

	return nil
}

// registerLabelSensor erstellt die Discovery-Konfiguration für ein
// einzelnes Kamera/Label-Paar
func (dm *DiscoveryManager) registerLabelSensor(camera config.CameraConfig, label string, device *Device) error {
	normalizedLabel := normalize(label)
	objectID := fmt.Sprintf("%s_%s", normalize(camera.Name), normalizedLabel)

	sensorConfig := BinarySensorConfig{
		Name:                fmt.Sprintf("%s %s", camera.Name, label),
		UniqueID:            fmt.Sprintf("cv_camera_%s", objectID),
		StateTopic:          runner.StateTopic(camera.TopicPrefix, camera.Name, label),
		JSONAttributesTopic: runner.AttributesTopic(camera.TopicPrefix, camera.Name, label),
		PayloadOn:           "ON",
		PayloadOff:          "OFF",
		DeviceClass:         "occupancy",
		Icon:                "mdi:cctv",
		AvailabilityTopic:   dm.cfg.AvailabilityTopic,
		PayloadAvailable:    "online",
		PayloadNotAvailable: "offline",
		Device:              device,
	}

	// Discovery-Topic
	topic := fmt.Sprintf("%s/%s/%s/%s/config",
		dm.cfg.HomeAssistant.DiscoveryPrefix,
		ComponentBinarySensor,
		dm.cfg.HomeAssistant.NodeID,
		objectID)

	// Konfiguration an MQTT senden
	log.Infof("Registering Home Assistant sensor for %s/%s", camera.Name, label)
	if err := dm.publisher.PublishRetain(topic, sensorConfig); err != nil {
		return fmt.Errorf("failed to publish discovery configuration: %w", err)
	}

	return nil
}

// normalize macht einen Bezeichner Topic-tauglich (Kleinbuchstaben,
// Leerzeichen durch Unterstriche)
func normalize(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}
