// Package devplane is a local control plane for development and end-to-end
// tests. It serves the same HTTP API edgepub publishes against, keeps state
// in SQLite and exports Prometheus metrics.
package devplane

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"edgepub/internal/controlplane"
	"edgepub/internal/durable"

	"github.com/containerd/errdefs"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// DefaultBasePath matches the public API root so the client only needs a
	// different host.
	DefaultBasePath = "/client/v4"

	maxScriptBytes  = 10 << 20
	shutdownTimeout = 5 * time.Second
)

type Options struct {
	// Token, when set, is required as a bearer token on API routes.
	Token    string
	BasePath string
	Logger   *slog.Logger
}

type Server struct {
	store   *Store
	engine  *gin.Engine
	log     *slog.Logger
	started time.Time
}

func NewServer(store *Store, opts Options) *Server {
	RegisterMetrics()
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BasePath == "" {
		opts.BasePath = DefaultBasePath
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(opts.Logger))
	r.Use(requestMetrics())

	s := &Server{store: store, engine: r, log: opts.Logger, started: time.Now()}
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group(opts.BasePath, requireToken(opts.Token))
	api.GET("/accounts/:account/workers/durable_objects/namespaces", s.listNamespaces)
	api.POST("/accounts/:account/workers/durable_objects/namespaces", s.createNamespace)
	api.PUT("/accounts/:account/workers/durable_objects/namespaces/:id", s.updateNamespace)
	api.PUT("/accounts/:account/workers/scripts/:script", s.uploadScript)
	api.POST("/accounts/:account/workers/scripts/:script/subdomain", s.enableSubdomain)
	api.PUT("/accounts/:account/workers/scripts/:script/schedules", s.updateSchedules)
	api.GET("/accounts/:account/workers/subdomain", s.getSubdomain)
	api.PUT("/accounts/:account/workers/subdomain", s.setSubdomain)
	api.GET("/zones/:zone/workers/routes", s.listRoutes)
	api.POST("/zones/:zone/workers/routes", s.createRoute)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve listens on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown devplane: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type envelope struct {
	Success  bool         `json:"success"`
	Errors   []apiMessage `json:"errors"`
	Messages []apiMessage `json:"messages"`
	Result   any          `json:"result"`
}

type apiMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func ok(c *gin.Context, result any) {
	c.JSON(http.StatusOK, envelope{Success: true, Errors: []apiMessage{}, Messages: []apiMessage{}, Result: result})
}

func fail(c *gin.Context, status, code int, message string) {
	c.JSON(status, envelope{
		Success:  false,
		Errors:   []apiMessage{{Code: code, Message: message}},
		Messages: []apiMessage{},
	})
}

// failErr maps a store error onto an HTTP status by its errdefs class.
func (s *Server) failErr(c *gin.Context, err error) {
	switch {
	case errdefs.IsNotFound(err):
		fail(c, http.StatusNotFound, 10007, err.Error())
	case errdefs.IsConflict(err):
		fail(c, http.StatusConflict, 10061, err.Error())
	case errdefs.IsInvalidArgument(err):
		fail(c, http.StatusBadRequest, 10021, err.Error())
	default:
		s.log.Error("devplane request failed", "path", c.Request.URL.Path, "err", err)
		fail(c, http.StatusInternalServerError, 10013, "internal error")
	}
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		fail(c, http.StatusBadRequest, 10014, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"uptime":  time.Since(s.started).String(),
		"service": "edgepub-devplane",
	})
}

func (s *Server) listNamespaces(c *gin.Context) {
	out, err := s.store.ListNamespaces(c.Request.Context(), c.Param("account"))
	if err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, out)
}

func (s *Server) createNamespace(c *gin.Context) {
	var req durable.CreateNamespaceRequest
	if !bindJSON(c, &req) {
		return
	}
	rec, err := s.store.CreateNamespace(c.Request.Context(), c.Param("account"), req)
	if err != nil {
		s.failErr(c, err)
		return
	}
	if rec.IsPlaceholder() {
		recordNamespaceMutation(mutationPlaceholder)
	} else {
		recordNamespaceMutation(mutationCreate)
	}
	ok(c, rec)
}

func (s *Server) updateNamespace(c *gin.Context) {
	var req durable.UpdateNamespaceRequest
	if !bindJSON(c, &req) {
		return
	}
	rec, err := s.store.UpdateNamespace(c.Request.Context(), c.Param("account"), c.Param("id"), req)
	if err != nil {
		s.failErr(c, err)
		return
	}
	recordNamespaceMutation(mutationUpdate)
	ok(c, rec)
}

func (s *Server) uploadScript(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxScriptBytes)
	var meta controlplane.ScriptMetadata
	if err := json.Unmarshal([]byte(c.PostForm("metadata")), &meta); err != nil {
		fail(c, http.StatusBadRequest, 10021, "invalid metadata part: "+err.Error())
		return
	}
	if meta.BodyPart == "" {
		fail(c, http.StatusBadRequest, 10021, "metadata body_part is required")
		return
	}
	fh, err := c.FormFile(meta.BodyPart)
	if err != nil {
		fail(c, http.StatusBadRequest, 10021, fmt.Sprintf("missing script part %q", meta.BodyPart))
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.failErr(c, err)
		return
	}
	defer f.Close()
	body, err := io.ReadAll(f)
	if err != nil {
		s.failErr(c, err)
		return
	}

	script := c.Param("script")
	if err := s.store.PutScript(c.Request.Context(), c.Param("account"), script, body, meta.Bindings); err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, gin.H{"id": script})
}

func (s *Server) enableSubdomain(c *gin.Context) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := s.store.EnableWorkersDev(c.Request.Context(), c.Param("account"), c.Param("script"), req.Enabled); err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, gin.H{"enabled": req.Enabled})
}

func (s *Server) updateSchedules(c *gin.Context) {
	var req []controlplane.Schedule
	if !bindJSON(c, &req) {
		return
	}
	crons := make([]string, 0, len(req))
	for _, sch := range req {
		crons = append(crons, sch.Cron)
	}
	account, script := c.Param("account"), c.Param("script")
	if err := s.store.ReplaceSchedules(c.Request.Context(), account, script, crons); err != nil {
		s.failErr(c, err)
		return
	}
	stored, err := s.store.Schedules(c.Request.Context(), account, script)
	if err != nil {
		s.failErr(c, err)
		return
	}
	out := make([]controlplane.Schedule, 0, len(stored))
	for _, cron := range stored {
		out = append(out, controlplane.Schedule{Cron: cron})
	}
	ok(c, gin.H{"schedules": out})
}

func (s *Server) getSubdomain(c *gin.Context) {
	sub, err := s.store.Subdomain(c.Request.Context(), c.Param("account"))
	if err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, gin.H{"subdomain": sub})
}

func (s *Server) setSubdomain(c *gin.Context) {
	var req struct {
		Subdomain string `json:"subdomain" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := s.store.SetSubdomain(c.Request.Context(), c.Param("account"), req.Subdomain); err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, gin.H{"subdomain": req.Subdomain})
}

func (s *Server) listRoutes(c *gin.Context) {
	out, err := s.store.ListRoutes(c.Request.Context(), c.Param("zone"))
	if err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, out)
}

func (s *Server) createRoute(c *gin.Context) {
	var req controlplane.Route
	if !bindJSON(c, &req) {
		return
	}
	route, err := s.store.CreateRoute(c.Request.Context(), c.Param("zone"), req)
	if err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, route)
}
