package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"hlspress/internal/config"
	"hlspress/internal/encoding"
	"hlspress/internal/hls"
	"hlspress/internal/logging"
	"hlspress/internal/runs"
	"hlspress/internal/services"
	"hlspress/internal/transcode"
)

// Transcoder runs one upload through the full pipeline.
type Transcoder interface {
	Run(ctx context.Context, uploadedPath, originalFilename string) (transcode.Result, error)
}

// RunReader serves run history queries. *runs.Store satisfies it.
type RunReader interface {
	List(ctx context.Context, statuses ...runs.Status) ([]*runs.Run, error)
	GetRun(ctx context.Context, id string) (*runs.Run, error)
	JobsForRun(ctx context.Context, runID string) ([]*runs.Job, error)
	FindByOutputRoot(ctx context.Context, outputRoot string) (*runs.Run, error)
}

// Server wires the HTTP routes to the orchestration core.
type Server struct {
	cfg        *config.Config
	transcoder Transcoder
	reader     RunReader
	logger     *slog.Logger
	engine     *gin.Engine
}

// NewServer builds the router. reader may be nil when run history is not
// persisted; the history endpoints then return empty results.
func NewServer(cfg *config.Config, transcoder Transcoder, reader RunReader, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	server := &Server{
		cfg:        cfg,
		transcoder: transcoder,
		reader:     reader,
		logger:     logging.NewComponentLogger(logger, "api"),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), server.requestLogger())
	if cfg.MaxUploadBytes() > 0 {
		engine.MaxMultipartMemory = 8 << 20
	}

	engine.GET("/healthz", server.handleHealth)
	engine.POST("/api/transcode/new", server.handleTranscode)
	engine.GET("/api/runs", server.handleListRuns)
	engine.GET("/api/runs/:id", server.handleGetRun)
	engine.Static("/videos", cfg.Paths.OutputDir)

	server.engine = engine
	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("elapsed", time.Since(start)),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleTranscode(c *gin.Context) {
	if limit := s.cfg.MaxUploadBytes(); limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}

	stagedName := uuid.NewString() + filepath.Ext(file.Filename)
	stagedPath := filepath.Join(s.cfg.Paths.UploadDir, stagedName)
	if err := c.SaveUploadedFile(file, stagedPath); err != nil {
		s.logger.Error("failed to stage upload", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload"})
		return
	}

	result, err := s.transcoder.Run(c.Request.Context(), stagedPath, file.Filename)
	if err != nil {
		if errors.Is(err, services.ErrConflict) {
			s.respondConflict(c, err, stagedPath, file.Filename)
			return
		}
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Transcoding completed",
		"run_id":       result.RunID,
		"manifest":     result.ManifestPath,
		"playback_url": "/videos/" + result.BaseName + "/" + hls.MasterFilename,
		"variants":     result.Variants,
	})
}

// respondConflict names the run already holding the output root so a client
// can poll it instead of retrying blindly.
func (s *Server) respondConflict(c *gin.Context, err error, stagedPath, originalFilename string) {
	payload := gin.H{"error": err.Error()}
	if s.reader != nil {
		if asset, assetErr := encoding.NewSourceAsset(stagedPath, originalFilename, s.cfg.Paths.OutputDir); assetErr == nil {
			prior, findErr := s.reader.FindByOutputRoot(c.Request.Context(), asset.OutputRoot)
			if findErr != nil {
				s.logger.Warn("failed to resolve conflicting run", logging.Error(findErr))
			} else if prior != nil {
				payload["active_run_id"] = prior.ID
			}
		}
	}
	c.JSON(http.StatusConflict, payload)
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s.reader == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []runView{}})
		return
	}

	var statuses []runs.Status
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, ok := runs.ParseStatus(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status " + raw})
			return
		}
		statuses = append(statuses, status)
	}

	records, err := s.reader.List(c.Request.Context(), statuses...)
	if err != nil {
		s.logger.Error("failed to list runs", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list runs"})
		return
	}

	views := make([]runView, 0, len(records))
	for _, record := range records {
		views = append(views, newRunView(record, nil))
	}
	c.JSON(http.StatusOK, gin.H{"runs": views})
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s.reader == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}

	id := c.Param("id")
	record, err := s.reader.GetRun(c.Request.Context(), id)
	if err != nil {
		s.logger.Error("failed to load run", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load run"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}

	jobs, err := s.reader.JobsForRun(c.Request.Context(), id)
	if err != nil {
		s.logger.Error("failed to load run jobs", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load run"})
		return
	}
	c.JSON(http.StatusOK, newRunView(record, jobs))
}

func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		s.logger.Error("transcode request failed", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
