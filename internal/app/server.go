// Package app wires the HTTP surface over the notification and roster cores.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tapinapp/beacon/internal/auth"
	"github.com/tapinapp/beacon/internal/device"
	"github.com/tapinapp/beacon/internal/directory"
	"github.com/tapinapp/beacon/internal/notify"
	"github.com/tapinapp/beacon/internal/room"
	"github.com/tapinapp/beacon/internal/roster"
)

const shutdownTimeout = 10 * time.Second

// Config holds the server's own settings. Collaborators are injected
// separately through Deps.
type Config struct {
	Port int
	// AvatarDir is where uploaded avatar images are stored.
	AvatarDir string
	// PublicBaseURL prefixes the avatar URLs handed to clients.
	PublicBaseURL string
	// EventsAPIKey guards the chat-server webhook routes when set.
	EventsAPIKey string
}

// Deps carries the collaborators the HTTP surface drives.
type Deps struct {
	Directory  directory.Store
	Roster     roster.Store
	Reconciler *roster.Reconciler
	Tokens     device.TokenStore
	Members    room.MemberStore
	Occupancy  *room.OccupancyRegistry
	Engine     *notify.Engine
	Verifier   auth.VerifierConfig
}

// Server is the HTTP front of the service.
type Server struct {
	cfg    Config
	deps   Deps
	router *gin.Engine
	httpd  *http.Server

	// bg tracks work accepted for asynchronous completion, like contact
	// sync, so Close can drain it.
	bg sync.WaitGroup
}

// NewServer builds the router and handler wiring.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Directory == nil {
		return nil, fmt.Errorf("directory store is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("notification engine is required")
	}

	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: router,
	}
	s.routes()

	s.httpd = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}
	return s, nil
}

func (s *Server) routes() {
	s.router.GET("/healthz", s.handleHealthz())

	authed := s.router.Group("/")
	authed.Use(s.requireIdentity())
	{
		authed.POST("/register", s.handleRegister())
		authed.GET("/contacts", s.handleContactList())
		authed.POST("/contacts/sync", s.handleContactSync())
		authed.POST("/device-tokens", s.handleDeviceToken())
		authed.DELETE("/device-tokens", s.handleDeviceTokenDelete())
		authed.POST("/avatars", s.handleAvatarUpload())
	}

	s.router.GET("/avatars/:name", s.handleAvatarGet())

	events := s.router.Group("/events")
	events.Use(s.requireEventsKey())
	{
		events.POST("/offline-message", s.handleOfflineMessageEvent())
		events.POST("/muc-message", s.handleMucMessageEvent())
		events.POST("/profile-changed", s.handleProfileChangedEvent())
		events.POST("/avatar-changed", s.handleAvatarChangedEvent())
		events.POST("/occupant-joined", s.handleOccupantJoined())
		events.POST("/occupant-left", s.handleOccupantLeft())
		events.POST("/member-removed", s.handleMemberRemoved())
	}
}

// Serve runs the HTTP server until ctx is cancelled, then drains background
// work and in-flight notification pipelines.
func (s *Server) Serve(ctx context.Context) error {
	errs := make(chan error, 1)
	go func() {
		log.Printf("http server listening on %s", s.httpd.Addr)
		if err := s.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
			return
		}
		errs <- nil
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpd.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	s.bg.Wait()
	s.deps.Engine.Close()
	return <-errs
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

const claimsContextKey = "beacon.claims"

// requireIdentity verifies the caller's bearer identity token and stashes
// the validated claims on the request context.
func (s *Server) requireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "bearer token is required"})
			return
		}
		claims, err := auth.VerifyIDToken(token, s.deps.Verifier)
		if err != nil {
			log.Printf("identity verification failed: %v", err)
			writeError(c, err)
			c.Abort()
			return
		}
		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// requireEventsKey guards the chat-server webhooks with a shared key when
// one is configured.
func (s *Server) requireEventsKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.EventsAPIKey == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-Api-Key") != s.cfg.EventsAPIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid events api key"})
			return
		}
		c.Next()
	}
}

func claimsFrom(c *gin.Context) (auth.Claims, bool) {
	value, ok := c.Get(claimsContextKey)
	if !ok {
		return auth.Claims{}, false
	}
	claims, ok := value.(auth.Claims)
	return claims, ok
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
