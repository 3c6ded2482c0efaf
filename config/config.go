package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config repräsentiert die Hauptkonfiguration der Anwendung
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Cameras  []CameraConfig `mapstructure:"cameras"`
	Detector DetectorConfig `mapstructure:"detector"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Server   ServerConfig   `mapstructure:"server"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
}

// LogConfig enthält Log-Einstellungen
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DBConfig enthält Datenbankeinstellungen (SQLite)
type DBConfig struct {
	File string `mapstructure:"file"`
}

// CameraConfig beschreibt eine einzelne Kamera
type CameraConfig struct {
	Name         string `mapstructure:"name"`          // Eindeutiger Bezeichner, Schlüssel für Topics und Zustand
	Address      string `mapstructure:"address"`       // RTSP-URL der Kamera
	TopicPrefix  string `mapstructure:"topic_prefix"`  // MQTT-Topic-Präfix für diese Kamera
	OutputFolder string `mapstructure:"output_folder"` // Optional: Verzeichnis für gespeicherte Frames
}

// DetectorConfig enthält Einstellungen für den DNN-Objektdetektor
type DetectorConfig struct {
	ModelPath           string   `mapstructure:"model_path"`           // Pfad zur DNN-Modelldatei
	ConfigPath          string   `mapstructure:"config_path"`          // Pfad zur DNN-Konfigurationsdatei
	LabelsPath          string   `mapstructure:"labels_path"`          // Pfad zur Klassennamen-Datei (eine Klasse pro Zeile)
	ConfidenceThreshold float64  `mapstructure:"confidence_threshold"` // Schwellenwert für die Erkennungskonfidenz
	InputWidth          int      `mapstructure:"input_width"`          // Eingabebreite des Netzwerks
	InputHeight         int      `mapstructure:"input_height"`         // Eingabehöhe des Netzwerks
	Labels              []string `mapstructure:"labels"`               // Optional: nur diese Klassen verfolgen (leer = alle)
}

// ScheduleConfig enthält Einstellungen für die Abtast-Schleife
type ScheduleConfig struct {
	IntervalSeconds int    `mapstructure:"interval_seconds"` // Wartezeit zwischen den Durchläufen
	Mode            string `mapstructure:"mode"`             // "pass": ein Intervall pro Durchlauf, "camera": ein Intervall pro Kamera
}

// CaptureConfig enthält Einstellungen für die Frame-Erfassung
type CaptureConfig struct {
	WarmupReads    int `mapstructure:"warmup_reads"`    // Anzahl verworfener Frames vor der eigentlichen Aufnahme
	TimeoutSeconds int `mapstructure:"timeout_seconds"` // Obergrenze pro Kamera-Zyklus
}

// MQTTConfig enthält die Konfiguration für den MQTT-Client
type MQTTConfig struct {
	Broker            string              `mapstructure:"broker"`
	Port              int                 `mapstructure:"port"`
	Username          string              `mapstructure:"username"`
	Password          string              `mapstructure:"password"`
	ClientID          string              `mapstructure:"client_id"`
	AvailabilityTopic string              `mapstructure:"availability_topic"`
	HomeAssistant     HomeAssistantConfig `mapstructure:"homeassistant"`
}

// HomeAssistantConfig enthält die Konfiguration für die Home Assistant Integration
type HomeAssistantConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
	NodeID          string `mapstructure:"node_id"`
}

// ServerConfig enthält Einstellungen für die Status-API
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// CleanupConfig enthält Bereinigungseinstellungen
type CleanupConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

// Load lädt die Konfiguration aus Datei, Umgebungsvariablen und Standardwerten
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Standardwerte festlegen
	setDefaults(v)

	// Konfigurationsdatei laden, wenn vorhanden
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	// Umgebungsvariablen überlagern die Konfiguration
	v.AutomaticEnv()
	v.SetEnvPrefix("CV_CAMERA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Konfiguration in Struct umwandeln
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Konfiguration prüfen
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Sicherstellen, dass erforderliche Verzeichnisse existieren
	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// Validate prüft die geladene Konfiguration auf Konsistenz.
// Der Kameraname ist der einzige Schlüssel zwischen Konfiguration, Zustand
// und Topics und muss daher eindeutig sein.
func (c *Config) Validate() error {
	if len(c.Cameras) == 0 {
		return fmt.Errorf("no cameras configured")
	}

	seen := make(map[string]bool, len(c.Cameras))
	for i, cam := range c.Cameras {
		if cam.Name == "" {
			return fmt.Errorf("camera %d has no name", i)
		}
		if cam.Address == "" {
			return fmt.Errorf("camera %q has no address", cam.Name)
		}
		if seen[cam.Name] {
			return fmt.Errorf("duplicate camera name: %q", cam.Name)
		}
		seen[cam.Name] = true
	}

	if c.Schedule.IntervalSeconds <= 0 {
		return fmt.Errorf("schedule.interval_seconds must be positive")
	}
	if mode := c.Schedule.Mode; mode != "pass" && mode != "camera" {
		return fmt.Errorf("schedule.mode must be \"pass\" or \"camera\", got %q", mode)
	}

	if c.Detector.ModelPath == "" {
		return fmt.Errorf("detector.model_path is required")
	}

	return nil
}

// setDefaults legt Standardwerte für die Konfiguration fest
func setDefaults(v *viper.Viper) {
	// Log-Standardwerte
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	// DB-Standardwerte
	v.SetDefault("db.file", "/data/cv-camera.db")

	// Detektor-Standardwerte
	v.SetDefault("detector.confidence_threshold", 0.5)
	v.SetDefault("detector.input_width", 300)
	v.SetDefault("detector.input_height", 300)

	// Schedule-Standardwerte
	v.SetDefault("schedule.interval_seconds", 300)
	v.SetDefault("schedule.mode", "pass")

	// Capture-Standardwerte
	v.SetDefault("capture.warmup_reads", 5)
	v.SetDefault("capture.timeout_seconds", 30)

	// MQTT-Standardwerte
	v.SetDefault("mqtt.broker", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "cv-camera-go")
	v.SetDefault("mqtt.availability_topic", "cv_camera/status")
	v.SetDefault("mqtt.homeassistant.enabled", true)
	v.SetDefault("mqtt.homeassistant.discovery_prefix", "homeassistant")
	v.SetDefault("mqtt.homeassistant.node_id", "cv_camera")

	// Server-Standardwerte
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)

	// Cleanup-Standardwerte
	v.SetDefault("cleanup.retention_days", 30)
}

// ensureDirectories stellt sicher, dass alle erforderlichen Verzeichnisse existieren
func ensureDirectories(cfg *Config) error {
	// Log-Verzeichnis
	if cfg.Log.File != "" {
		logDir := filepath.Dir(cfg.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	// Datenbank-Verzeichnis (für SQLite)
	if cfg.DB.File != "" {
		dbDir := filepath.Dir(cfg.DB.File)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Ausgabeverzeichnisse der Kameras
	for _, cam := range cfg.Cameras {
		if cam.OutputFolder == "" {
			continue
		}
		if err := os.MkdirAll(cam.OutputFolder, 0755); err != nil {
			return fmt.Errorf("failed to create output folder for camera %q: %w", cam.Name, err)
		}
	}

	return nil
}
