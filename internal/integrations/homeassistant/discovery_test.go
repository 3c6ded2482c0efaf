package homeassistant

import (
	"encoding/json"
	"reflect"
	"testing"

	"cv-camera-go/config"
)

type fakeRetainPublisher struct {
	retained map[string][]byte
}

func newFakeRetainPublisher() *fakeRetainPublisher {
	return &fakeRetainPublisher{retained: make(map[string][]byte)}
}

func (f *fakeRetainPublisher) PublishRetain(topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	// Retained Nachrichten überschreiben sich gegenseitig
	f.retained[topic] = data
	return nil
}

func mqttCfg() config.MQTTConfig {
	return config.MQTTConfig{
		AvailabilityTopic: "cv_camera/status",
		HomeAssistant: config.HomeAssistantConfig{
			Enabled:         true,
			DiscoveryPrefix: "homeassistant",
			NodeID:          "cv_camera",
		},
	}
}

func TestRegisterCamerasBindsRuntimeTopics(t *testing.T) {
	pub := newFakeRetainPublisher()
	dm := NewDiscoveryManager(pub, mqttCfg())

	cams := []config.CameraConfig{
		{Name: "front", Address: "rtsp://front", TopicPrefix: "cameras"},
	}

	if err := dm.RegisterCameras(cams, []string{"person", "cat"}); err != nil {
		t.Fatalf("RegisterCameras failed: %v", err)
	}

	if len(pub.retained) != 2 {
		t.Fatalf("expected one discovery config per camera/label pair, got %d", len(pub.retained))
	}

	raw, ok := pub.retained["homeassistant/binary_sensor/cv_camera/front_person/config"]
	if !ok {
		t.Fatalf("missing discovery topic, got %v", topics(pub))
	}

	var cfg BinarySensorConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("unmarshal discovery payload: %v", err)
	}

	// Die Topics in der Discovery-Konfiguration müssen exakt den
	// Laufzeit-Topics des Runners entsprechen
	if cfg.StateTopic != "cameras/front/person/state" {
		t.Errorf("state topic mismatch: %s", cfg.StateTopic)
	}
	if cfg.JSONAttributesTopic != "cameras/front/person/attributes" {
		t.Errorf("attributes topic mismatch: %s", cfg.JSONAttributesTopic)
	}
	if cfg.PayloadOn != "ON" || cfg.PayloadOff != "OFF" {
		t.Errorf("unexpected payloads: on=%q off=%q", cfg.PayloadOn, cfg.PayloadOff)
	}
	if cfg.UniqueID != "cv_camera_front_person" {
		t.Errorf("unexpected unique_id: %s", cfg.UniqueID)
	}
	if cfg.AvailabilityTopic != "cv_camera/status" {
		t.Errorf("unexpected availability topic: %s", cfg.AvailabilityTopic)
	}
	if cfg.Device == nil || len(cfg.Device.Identifiers) != 1 || cfg.Device.Identifiers[0] != "cv_camera_front" {
		t.Errorf("device block not keyed by camera identity: %+v", cfg.Device)
	}
}

func TestRegisterCamerasIsIdempotent(t *testing.T) {
	pub := newFakeRetainPublisher()
	dm := NewDiscoveryManager(pub, mqttCfg())

	cams := []config.CameraConfig{
		{Name: "front", Address: "rtsp://front", TopicPrefix: "cameras"},
		{Name: "back", Address: "rtsp://back", TopicPrefix: "cameras"},
	}
	labels := []string{"person"}

	if err := dm.RegisterCameras(cams, labels); err != nil {
		t.Fatalf("first RegisterCameras failed: %v", err)
	}
	first := make(map[string][]byte, len(pub.retained))
	for k, v := range pub.retained {
		first[k] = v
	}

	if err := dm.RegisterCameras(cams, labels); err != nil {
		t.Fatalf("second RegisterCameras failed: %v", err)
	}

	if !reflect.DeepEqual(first, pub.retained) {
		t.Error("publishing discovery twice must leave the same retained payloads")
	}
}

func TestDisabledDiscoveryPublishesNothing(t *testing.T) {
	pub := newFakeRetainPublisher()
	cfg := mqttCfg()
	cfg.HomeAssistant.Enabled = false
	dm := NewDiscoveryManager(pub, cfg)

	if err := dm.RegisterCameras([]config.CameraConfig{{Name: "front", TopicPrefix: "cameras"}}, []string{"person"}); err != nil {
		t.Fatalf("RegisterCameras failed: %v", err)
	}
	if len(pub.retained) != 0 {
		t.Errorf("expected no discovery messages, got %v", topics(pub))
	}
}

func TestLabelNormalization(t *testing.T) {
	pub := newFakeRetainPublisher()
	dm := NewDiscoveryManager(pub, mqttCfg())

	cams := []config.CameraConfig{{Name: "Front Door", TopicPrefix: "cameras"}}
	if err := dm.RegisterCameras(cams, []string{"potted plant"}); err != nil {
		t.Fatalf("RegisterCameras failed: %v", err)
	}

	if _, ok := pub.retained["homeassistant/binary_sensor/cv_camera/front_door_potted_plant/config"]; !ok {
		t.Errorf("expected normalized object id in discovery topic, got %v", topics(pub))
	}
}

func topics(pub *fakeRetainPublisher) []string {
	out := make([]string, 0, len(pub.retained))
	for topic := range pub.retained {
		out = append(out, topic)
	}
	return out
}
