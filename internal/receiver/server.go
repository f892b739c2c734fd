// Package receiver is a reference implementation of the remote store. It
// accepts batched updates, keeps one snapshot per user and serves it back.
package receiver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jmgilman/dexkeep/internal/auth"
	"github.com/jmgilman/dexkeep/internal/instance"
	"github.com/jmgilman/dexkeep/internal/remote"
	"github.com/jmgilman/dexkeep/internal/variant"
)

const (
	ctxClaimsKey  = "auth_claims"
	ctxTraceIDKey = "trace_id"

	// TraceHeader carries the per-request trace id.
	TraceHeader = "X-Trace-ID"

	shutdownTimeout = 5 * time.Second
)

// Config configures a Server.
type Config struct {
	Addr    string
	Tokens  auth.TokenService
	Backend Backend

	// Catalog, when set, is served at /catalog.json.
	Catalog variant.Source

	Logger *slog.Logger
}

// Server handles the remote store routes.
type Server struct {
	cfg    Config
	engine *gin.Engine
	log    *slog.Logger

	locks sync.Map
}

// New builds a server for cfg.
func New(cfg Config) *Server {
	if cfg.Backend == nil {
		cfg.Backend = NewMemoryBackend()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{cfg: cfg, log: logger}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.trace(), s.accessLog())
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Catalog != nil {
		engine.GET("/catalog.json", s.catalog)
	}

	authed := engine.Group("/", s.authenticate())
	authed.POST("/batchedUpdates", s.batchedUpdates)
	authed.GET("/instances", s.instances)

	s.engine = engine
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("receiver listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh
	return nil
}

func (s *Server) trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(ctxTraceIDKey, id)
		c.Header(TraceHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"trace_id", c.GetString(ctxTraceIDKey),
		)
	}
}

func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(strings.ToLower(h), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		claims, err := s.cfg.Tokens.Parse(strings.TrimSpace(h[len("Bearer "):]))
		if err != nil {
			s.log.Debug("rejected token", "error", err, "trace_id", c.GetString(ctxTraceIDKey))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(ctxClaimsKey, claims)
		c.Next()
	}
}

func mustGetClaims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(ctxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

// userLock serializes read-modify-write cycles of one user's snapshot.
func (s *Server) userLock(user string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(user, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *Server) catalog(c *gin.Context) {
	variants, err := s.cfg.Catalog.Variants(c.Request.Context())
	if err != nil {
		s.log.Error("load catalog", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "catalog unavailable"})
		return
	}
	c.JSON(http.StatusOK, variant.Document{Version: 1, Variants: variants})
}

func (s *Server) instances(c *gin.Context) {
	claims := mustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	snap, err := s.cfg.Backend.Load(c.Request.Context(), claims.Actor())
	if err != nil {
		s.log.Error("load snapshot", "user", claims.Actor(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load failed"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) batchedUpdates(c *gin.Context) {
	claims := mustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	traceID := c.GetString(ctxTraceIDKey)

	req, err := decodeBatch(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "trace_id": traceID})
		return
	}
	if total := len(req.PokemonUpdates) + len(req.TradeUpdates); total > remote.MaxUpdatesPerRequest {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":    fmt.Sprintf("too many updates: %d > %d", total, remote.MaxUpdatesPerRequest),
			"trace_id": traceID,
		})
		return
	}

	user := claims.Actor()
	ctx := c.Request.Context()

	mu := s.userLock(user)
	mu.Lock()
	defer mu.Unlock()

	snap, err := s.cfg.Backend.Load(ctx, user)
	if err != nil {
		s.log.Error("load snapshot", "user", user, "error", err, "trace_id", traceID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load failed", "trace_id": traceID})
		return
	}

	resp := applyUpdates(&snap, user, req.PokemonUpdates)
	resp.TraceID = traceID

	if resp.Applied > 0 {
		if err := s.cfg.Backend.Save(ctx, user, snap); err != nil {
			s.log.Error("save snapshot", "user", user, "error", err, "trace_id", traceID)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "save failed", "trace_id": traceID})
			return
		}
	}

	s.log.Info("batched updates",
		"user", user,
		"applied", resp.Applied,
		"ignored", resp.Ignored,
		"rejected", len(resp.Rejected),
		"trace_id", traceID,
	)
	c.JSON(http.StatusOK, resp)
}

// decodeBatch reads exactly one JSON request body, keeping numbers exact.
func decodeBatch(body io.Reader) (remote.BatchRequest, error) {
	var req remote.BatchRequest
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("invalid json: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return req, errors.New("request body must contain a single JSON value")
	}
	if req.PokemonUpdates == nil {
		req.PokemonUpdates = []remote.Update{}
	}
	if req.TradeUpdates == nil {
		req.TradeUpdates = []json.RawMessage{}
	}
	return req, nil
}

// applyUpdates applies each update whose timestamp is not older than the
// stored record. Replayed updates therefore leave the snapshot unchanged.
func applyUpdates(snap *instance.Snapshot, user string, updates []remote.Update) remote.BatchResponse {
	var resp remote.BatchResponse
	reject := func(u remote.Update, reason string) {
		id, _ := u[remote.FieldInstanceID].(string)
		resp.Rejected = append(resp.Rejected, remote.Rejected{InstanceID: id, Reason: reason})
	}

	for _, u := range updates {
		d, err := remote.DecodeUpdate(u)
		if err != nil {
			reject(u, err.Error())
			continue
		}

		existing, exists := snap.Instances[d.InstanceID]
		if exists && existing.Owner != "" && existing.Owner != user {
			reject(u, "instance belongs to another user")
			continue
		}
		if exists && d.Timestamp < existing.LastUpdate {
			resp.Ignored++
			continue
		}

		if d.Deleted {
			if exists {
				delete(snap.Instances, d.InstanceID)
			}
			snap.Timestamp = max(snap.Timestamp, d.Timestamp)
			resp.Applied++
			continue
		}

		inst, err := d.Instance()
		if err != nil {
			reject(u, err.Error())
			continue
		}
		if inst.VariantKey == "" {
			inst.VariantKey = d.InstanceID.VariantKey()
		}
		if inst.ID != d.InstanceID || inst.VariantKey != d.InstanceID.VariantKey() {
			reject(u, "instance_id does not match variant_key")
			continue
		}
		if inst.Owner != "" && inst.Owner != user {
			reject(u, "instance belongs to another user")
			continue
		}
		if err := instance.ValidateDetails(inst.Details); err != nil {
			reject(u, err.Error())
			continue
		}

		inst.Owner = user
		inst.LastUpdate = d.Timestamp
		snap.Instances[d.InstanceID] = inst
		snap.Timestamp = max(snap.Timestamp, d.Timestamp)
		resp.Applied++
	}
	return resp
}
