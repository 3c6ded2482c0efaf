package server

import (
	"fmt"
	"net/http"
	"strconv"

	"cv-camera-go/config"
	"cv-camera-go/internal/core/scheduler"
	"cv-camera-go/internal/db/repository"
	"cv-camera-go/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Server stellt eine kleine Status-API bereit, über die sich der Zustand
// der Abtast-Schleife und die jüngsten Captures abfragen lassen
type Server struct {
	cfg       config.ServerConfig
	scheduler *scheduler.Scheduler
	repo      *repository.CaptureRepository
	engine    *gin.Engine
}

// NewServer erstellt einen neuen Status-Server
func NewServer(cfg config.ServerConfig, sched *scheduler.Scheduler, repo *repository.CaptureRepository) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	s := &Server{
		cfg:       cfg,
		scheduler: sched,
		repo:      repo,
		engine:    engine,
	}
	s.registerRoutes()

	return s
}

// registerRoutes registriert alle API-Endpunkte
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/status", s.handleStatus)
		api.GET("/captures", s.handleCaptures)
	}
}

// Start startet den HTTP-Server in einer eigenen Goroutine
func (s *Server) Start() {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	log.Infof("Starting status API on %s", addr)

	go func() {
		if err := s.engine.Run(addr); err != nil {
			log.Errorf("Status API stopped: %v", err)
		}
	}()
}

// handleHealth beantwortet Health-Checks
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleStatus liefert den letzten Zustand aller Kameras und Systemstatistiken
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pass_count": s.scheduler.PassCount(),
		"cameras":    s.scheduler.Statuses(),
		"system":     utils.GetSystemStats(),
	})
}

// handleCaptures liefert die jüngsten Capture-Einträge
func (s *Server) handleCaptures(c *gin.Context) {
	camera := c.Query("camera")

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = parsed
	}

	records, err := s.repo.Recent(camera, limit)
	if err != nil {
		log.Errorf("Failed to query captures: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query captures"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"captures": records})
}
