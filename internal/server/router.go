package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/vigil/internal/supervisor"
)

// Router provides embeddable HTTP handlers for the supervision control API.
// Endpoints:
//
//	GET  {basePath}/status   query: name=... (single) or none (all)
//	POST {basePath}/check    query: name=...  schedule an immediate probe
//	POST {basePath}/clear    query: name=...  reset counters, lift failed_permanently
//	GET  {basePath}/healthz  supervisor liveness
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	sup      *supervisor.Supervisor
	basePath string
}

func NewRouter(sup *supervisor.Supervisor, basePath string) *Router {
	return &Router{sup: sup, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.POST("/check", r.handleCheck)
	group.POST("/clear", r.handleClear)
	group.GET("/healthz", r.handleHealthz)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, sup *supervisor.Supervisor) (*http.Server, error) {
	r := NewRouter(sup, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func (r *Router) handleStatus(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		writeJSON(c, http.StatusOK, r.sup.Statuses())
		return
	}
	if !isSafeName(name) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid name: allowed [A-Za-z0-9._-]"})
		return
	}
	st, err := r.sup.Status(name)
	if err != nil {
		writeJSON(c, statusCode(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) handleCheck(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "name query param required"})
		return
	}
	if !isSafeName(name) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid name: allowed [A-Za-z0-9._-]"})
		return
	}
	if err := r.sup.CheckNow(c.Request.Context(), name); err != nil {
		writeJSON(c, statusCode(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleClear(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "name query param required"})
		return
	}
	if !isSafeName(name) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid name: allowed [A-Za-z0-9._-]"})
		return
	}
	if err := r.sup.Clear(c.Request.Context(), name); err != nil {
		writeJSON(c, statusCode(err), errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleHealthz(c *gin.Context) {
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, supervisor.ErrUnknownService):
		return http.StatusNotFound
	case errors.Is(err, supervisor.ErrStatePersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
