package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cv-camera-go/config"
	"cv-camera-go/internal/cleanup"
	"cv-camera-go/internal/core/runner"
	"cv-camera-go/internal/core/scheduler"
	"cv-camera-go/internal/core/tracker"
	"cv-camera-go/internal/db"
	"cv-camera-go/internal/db/repository"
	"cv-camera-go/internal/integrations/homeassistant"
	"cv-camera-go/internal/integrations/mqtt"
	"cv-camera-go/internal/integrations/opencv"
	"cv-camera-go/internal/integrations/rtsp"
	"cv-camera-go/internal/logger"
	"cv-camera-go/internal/server"
	"cv-camera-go/internal/storage"
	"cv-camera-go/internal/utils"

	log "github.com/sirupsen/logrus"
)

const configPath = "/config/config.yaml"

func main() {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Log); err != nil {
		log.Errorf("Failed to initialize logger completely: %v", err)
	}

	// Initialize database connection
	log.Info("Initializing database...")
	if err := db.Initialize(cfg.DB); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	repo := repository.NewCaptureRepository(db.DB)

	// Load the detection model once at startup
	log.Infof("Loading model from %s...", cfg.Detector.ModelPath)
	detector, err := opencv.NewObjectDetector(cfg.Detector)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}
	defer detector.Close()

	// Connect to the MQTT broker; without a bus no camera can usefully run
	mqttClient := mqtt.NewClient(cfg.MQTT)
	if err := mqttClient.Start(); err != nil {
		log.Fatalf("MQTT connection failed: %v", err)
	}
	defer mqttClient.Stop()

	// Verfolgte Labels: konfigurierter Filter oder alle Modellklassen
	labels := cfg.Detector.Labels
	if len(labels) == 0 {
		labels = detector.ClassNames()
	}

	// Publish Home Assistant discovery messages
	discovery := homeassistant.NewDiscoveryManager(mqttClient, cfg.MQTT)
	if err := discovery.RegisterCameras(cfg.Cameras, labels); err != nil {
		log.Errorf("Failed to publish discovery configurations: %v", err)
	}

	// Presence tracker: leerer Anfangszustand pro Kamera
	presence := tracker.NewPresenceTracker()
	for _, camera := range cfg.Cameras {
		presence.Register(camera.Name)
	}

	// Cycle runner with its collaborators
	source := rtsp.NewSource(cfg.Capture)
	store := storage.NewFrameStore(repo)
	cycleRunner := runner.NewRunner(source, detector, store, mqttClient, presence, cfg.Capture, cfg.Detector.Labels)

	// Scheduler
	sched := scheduler.New(cfg.Cameras, cfg.Schedule, cycleRunner.RunCycle)
	sched.SetAfterPass(func() {
		// Systemstatistiken nach jedem Durchlauf melden (fire-and-forget)
		statsTopic := cfg.MQTT.AvailabilityTopic + "/stats"
		if err := mqttClient.Publish(statsTopic, utils.GetSystemStats()); err != nil {
			log.Debugf("Failed to publish system stats: %v", err)
		}
	})

	// Cleanup service
	cleanupService := cleanup.NewService(repo, cfg.Cleanup.RetentionDays, 24*time.Hour)
	if cleanupService != nil {
		cleanupService.StartBackgroundCleanup()
		defer cleanupService.StopBackgroundCleanup()
	}

	// Status API
	if cfg.Server.Enabled {
		apiServer := server.NewServer(cfg.Server, sched, repo)
		apiServer.Start()
	}

	// Scheduling-Schleife bis SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("Starting loop. Capturing every %d seconds.", cfg.Schedule.IntervalSeconds)
	sched.Run(ctx)

	// Beim Herunterfahren den Offline-Status aktiv melden
	log.Info("Shutting down...")
	if cfg.MQTT.AvailabilityTopic != "" {
		if err := mqttClient.PublishRetain(cfg.MQTT.AvailabilityTopic, "offline"); err != nil {
			log.Warnf("Failed to publish offline status: %v", err)
		}
	}
}
