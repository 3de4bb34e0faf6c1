// Package control provides the HTTP control API for a running keyer.
package control

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"keyerd/internal/engine"
	"keyerd/internal/health"
	"keyerd/internal/logging"
	"keyerd/internal/metrics"
	"keyerd/internal/store"
)

// Speed limits accepted by PUT /api/speed.
const (
	MinWPM = 5
	MaxWPM = 60
)

// Controller is the engine surface the API drives.
type Controller interface {
	Select(ctx context.Context, n int) error
	SetWPM(ctx context.Context, wpm int) error
	Status(ctx context.Context) (engine.Status, error)
}

// Journal is the read side of the element journal. It may be nil.
type Journal interface {
	Sessions(limit int) ([]store.Session, error)
	SessionStats(id string) (*store.SessionStats, error)
	Elements(sessionID string) ([]store.Element, error)
}

// Server serves the control API.
type Server struct {
	addr      string
	ctrl      Controller
	journal   Journal
	registry  *metrics.Registry
	health    *health.Checker
	log       *logging.Logger
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a control server. journal and registry may be nil.
func NewServer(addr string, ctrl Controller, journal Journal, registry *metrics.Registry, log *logging.Logger) *Server {
	if addr == "" {
		addr = "127.0.0.1:7373"
	}
	if log == nil {
		log = logging.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		ctrl:      ctrl,
		journal:   journal,
		registry:  registry,
		log:       log.WithComponent("control"),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

// SetHealth sets the checker behind /api/health. Without one the endpoint
// only reports uptime.
func (s *Server) SetHealth(c *health.Checker) {
	s.health = c
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/keyers", s.handleKeyers)
	api.GET("/keyer", s.handleStatus)
	api.PUT("/keyer", s.handleSelect)
	api.PUT("/speed", s.handleSpeed)
	api.GET("/sessions", s.handleSessions)
	api.GET("/sessions/:id", s.handleSession)

	if s.registry != nil {
		r.GET("/metrics", gin.WrapH(s.registry.HTTPHandler()))
	}
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("control server failed", "error", err)
		}
	}()
	s.log.Info("control API listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := s.log.NewRequestID()
		c.Request = c.Request.WithContext(logging.ContextWithRequestID(c.Request.Context(), id))
		c.Header("X-Request-ID", id)

		start := time.Now()
		c.Next()

		s.log.WithRequestID(id).Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, health.Report{
			Status:    health.StatusHealthy,
			UptimeSec: int64(time.Since(s.startTime).Seconds()),
		})
		return
	}

	report := s.health.Report(c.Request.Context())
	code := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, report)
}

func (s *Server) handleKeyers(c *gin.Context) {
	c.JSON(http.StatusOK, engine.Keyers())
}

func (s *Server) handleStatus(c *gin.Context) {
	st, err := s.ctrl.Status(c.Request.Context())
	if err != nil {
		s.engineError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleSelect(c *gin.Context) {
	var req struct {
		Number *int `json:"number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing number field"})
		return
	}
	if *req.Number < 0 || *req.Number > 9 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "number must be between 0 and 9"})
		return
	}

	ctx := c.Request.Context()
	if err := s.ctrl.Select(ctx, *req.Number); err != nil {
		s.engineError(c, err)
		return
	}
	s.log.WithContext(ctx).Info("keyer selected over API", "number", *req.Number)
	s.handleStatus(c)
}

func (s *Server) handleSpeed(c *gin.Context) {
	var req struct {
		WPM *int `json:"wpm" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing wpm field"})
		return
	}
	if *req.WPM < MinWPM || *req.WPM > MaxWPM {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wpm must be between 5 and 60"})
		return
	}

	ctx := c.Request.Context()
	if err := s.ctrl.SetWPM(ctx, *req.WPM); err != nil {
		s.engineError(c, err)
		return
	}
	s.log.WithContext(ctx).Info("speed set over API", "wpm", *req.WPM)
	s.handleStatus(c)
}

func (s *Server) handleSessions(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	sessions, err := s.journal.Sessions(limit)
	if err != nil {
		s.log.Error("list sessions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read sessions"})
		return
	}

	out := make([]gin.H, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionJSON(sess))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleSession(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "journal disabled"})
		return
	}

	id := c.Param("id")
	stats, err := s.journal.SessionStats(id)
	if err != nil {
		s.log.Error("session stats", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read session"})
		return
	}
	if stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such session"})
		return
	}

	body := gin.H{
		"id":          stats.SessionID,
		"elements":    stats.Elements,
		"by_paddle":   stats.ByPaddle,
		"key_down_ms": stats.KeyDownMs,
		"first_ms":    stats.FirstMs,
		"last_ms":     stats.LastMs,
	}
	if c.Query("elements") == "true" {
		elems, err := s.journal.Elements(id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read elements"})
			return
		}
		list := make([]gin.H, 0, len(elems))
		for _, e := range elems {
			list = append(list, gin.H{"paddle": e.Paddle, "start_ms": e.StartMs, "end_ms": e.EndMs})
		}
		body["timeline"] = list
	}
	c.JSON(http.StatusOK, body)
}

func sessionJSON(s store.Session) gin.H {
	h := gin.H{
		"id":         s.ID,
		"keyer":      s.Keyer,
		"wpm":        s.WPM,
		"started_ns": s.StartedNs,
	}
	if s.EndedNs != nil {
		h["ended_ns"] = *s.EndedNs
	}
	return h
}

func (s *Server) engineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidKeyer), errors.Is(err, engine.ErrInvalidSpeed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "engine stopped"})
	default:
		s.log.Error("engine request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
