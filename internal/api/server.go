package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rpalacios/regwatch/internal/db"
	"github.com/rpalacios/regwatch/internal/ingest"
	"github.com/rpalacios/regwatch/internal/models"
)

type Server struct {
	Store    *db.Store
	Pipeline *ingest.Pipeline
	Echo     *echo.Echo

	// Background job tracking
	jobMu      sync.Mutex
	runningJob *backgroundJob
}

type backgroundJob struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"` // running, completed, failed
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
}

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

// NewServer wires the HTTP surface around an already-constructed pipeline.
// The pipeline is shared, not per-request: the dedup window and quota are
// process-wide state.
func NewServer(store *db.Store, pipeline *ingest.Pipeline) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	allowedOrigins := []string{"http://localhost:4200"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{
		Store:    store,
		Pipeline: pipeline,
		Echo:     e,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.Echo.Group("/api/v1")
	api.GET("/events", s.handleListEvents)
	api.GET("/events/:id", s.handleGetEvent)
	api.POST("/events/:id/feedback", s.handleSubmitFeedback)
	api.GET("/status", s.handleGetStatus)
	api.GET("/sources", s.handleGetSources)
	api.GET("/runs", s.handleListRuns)

	// Admin Routes (trigger ingestion, digests)
	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/ingest/source/:id", s.handleIngestSource)
	admin.POST("/ingest/all", s.handleIngestAll)
	admin.POST("/digest/:id", s.handleSendDigest)
	admin.GET("/admin/job/:id", s.handleJobStatus)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleListEvents(c echo.Context) error {
	params := db.ListParams{
		Source: c.QueryParam("source"),
		Tier:   c.QueryParam("tier"),
	}
	if v, err := strconv.Atoi(c.QueryParam("min_score")); err == nil && v > 0 {
		params.MinScore = v
	}
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 200 {
		params.Limit = v
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v >= 0 {
		params.Offset = v
	}
	if v, err := strconv.Atoi(c.QueryParam("since_days")); err == nil && v > 0 {
		since := time.Now().UTC().AddDate(0, 0, -v)
		params.Since = &since
	}

	result, err := s.Store.ListEvents(c.Request().Context(), params)
	if err != nil {
		c.Logger().Errorf("Failed to list events: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetEvent(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid event ID"})
	}

	event, err := s.Store.GetEvent(c.Request().Context(), id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
		}
		c.Logger().Errorf("Failed to get event: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusOK, event)
}

type feedbackRequest struct {
	Helpful *bool `json:"helpful"`
}

// handleSubmitFeedback validates strictly at the boundary; malformed input
// never reaches storage.
func (s *Server) handleSubmitFeedback(c echo.Context) error {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid event ID"})
	}

	var req feedbackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.Helpful == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Field 'helpful' is required"})
	}

	// The event must exist; a vote on nothing is a client fault.
	if _, err := s.Store.GetEvent(c.Request().Context(), eventID); err != nil {
		if err == pgx.ErrNoRows {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	fb, err := s.Store.InsertFeedback(c.Request().Context(), models.Feedback{
		EventID: eventID,
		Helpful: *req.Helpful,
	})
	if err != nil {
		c.Logger().Errorf("Failed to insert feedback: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusCreated, fb)
}

func (s *Server) handleGetStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sources":          s.Pipeline.Tracker.List(),
		"quota_remaining":  s.Pipeline.Quota.Remaining(),
		"window_signature": s.Pipeline.Window.Len(),
	})
}

func (s *Server) handleGetSources(c echo.Context) error {
	type sourceInfo struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Kind     string `json:"kind"`
		Region   string `json:"region"`
		Schedule string `json:"schedule,omitempty"`
	}
	sources := make([]sourceInfo, 0, len(s.Pipeline.Registry.Sources))
	for _, src := range s.Pipeline.Registry.Sources {
		sources = append(sources, sourceInfo{
			ID:       src.ID,
			Name:     src.Name,
			Kind:     src.Kind,
			Region:   src.Region,
			Schedule: src.Schedule,
		})
	}
	return c.JSON(http.StatusOK, sources)
}

func (s *Server) handleListRuns(c echo.Context) error {
	limit := 50
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 && v <= 200 {
		limit = v
	}
	runs, err := s.Store.ListRuns(c.Request().Context(), c.QueryParam("source"), limit)
	if err != nil {
		c.Logger().Errorf("Failed to list runs: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	if runs == nil {
		runs = []models.PipelineRun{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handleIngestSource(c echo.Context) error {
	sourceID := c.Param("id")
	dryRun := strings.EqualFold(c.QueryParam("dry_run"), "true")

	result, err := s.Pipeline.RunSource(c.Request().Context(), sourceID, dryRun)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("%s run complete", sourceID),
		"result":  result,
	})
}

// handleIngestAll runs every source as a background job and returns 202
// immediately; progress is polled via /admin/job/:id.
func (s *Server) handleIngestAll(c echo.Context) error {
	dryRun := strings.EqualFold(c.QueryParam("dry_run"), "true")

	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		job := s.runningJob
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "An ingest-all job is already running",
			"job_id": job.ID,
		})
	}

	// context.WithoutCancel detaches from HTTP lifecycle but preserves
	// trace values. We add our own timeout for safety.
	jobCtx, jobCancel := context.WithTimeout(
		context.WithoutCancel(c.Request().Context()), 30*time.Minute,
	)

	jobID := uuid.New().String()[:8]
	job := &backgroundJob{
		ID:        jobID,
		Status:    "running",
		StartedAt: time.Now(),
		Cancel:    jobCancel,
	}
	s.runningJob = job
	s.jobMu.Unlock()

	go func() {
		defer jobCancel()
		results := s.Pipeline.RunAll(jobCtx, dryRun)

		s.jobMu.Lock()
		job.Status = "completed"
		job.EndedAt = time.Now()
		job.Result = results
		s.jobMu.Unlock()
		log.Printf("[ingest-job %s] completed: %d sources", jobID, len(results))
	}()

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Ingest-all job started",
		"job_id":  jobID,
		"dry_run": dryRun,
		"poll":    fmt.Sprintf("/api/v1/admin/job/%s", jobID),
	})
}

func (s *Server) handleSendDigest(c echo.Context) error {
	sourceID := c.Param("id")
	sent, err := s.Pipeline.SendDigest(c.Request().Context(), sourceID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("digest sent for %s", sourceID),
		"events":  sent,
	})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")
	s.jobMu.Lock()
	job := s.runningJob
	s.jobMu.Unlock()

	if job == nil || job.ID != queried {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	s.jobMu.Lock()
	resp := map[string]interface{}{
		"id":         job.ID,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	s.jobMu.Unlock()

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		// Check X-Admin-Secret header or Bearer token
		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func adminSecret() (string, error) {
	adminSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}

	return adminSecretRuntime, nil
}
