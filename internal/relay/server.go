// Package relay implements the room/membership signalling state
// machine and the transfer registry REST surface, mounted together
// behind one gin engine with graceful shutdown.
package relay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server binds an HTTP+WS listener exposing /ws, /upload,
// /download/:name, /download_success/:name and /status over a shared
// State instance.
type Server struct {
	state  *State
	router *gin.Engine
	http   *http.Server
	log    *slog.Logger
}

// New builds a Server. listenOnly restricts the mounted routes to
// /ws, the shape the sender's embedded LAN relay uses; the standalone
// serve subcommand passes false to mount the full registry surface.
func New(addr string, log *slog.Logger, listenOnly bool) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	s := &Server{
		state: NewState(),
		log:   log.With("component", "relay"),
	}
	s.router = router
	router.GET("/ws", s.handleWS)
	if !listenOnly {
		router.PUT("/upload", s.handleUpload)
		router.GET("/download/:name", s.handleDownload)
		router.POST("/download_success/:name", s.handleDownloadSuccess)
		router.GET("/status", s.handleStatus)
	}

	s.http = &http.Server{Addr: addr, Handler: router}
	return s
}

// Handler exposes the underlying router for tests that want to drive
// requests through httptest without binding a real listener.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then gracefully shuts down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("relay listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("relay shutting down")
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("relay shutdown: %w", err)
		}
		return <-errCh
	}
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	newClient(s.state, conn, s.log).Serve()
}

func (s *Server) handleUpload(c *gin.Context) {
	var incoming Advertisement
	if err := c.ShouldBindJSON(&incoming); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid advertisement"})
		return
	}

	s.state.mu.Lock()
	merged, created := s.state.mergeAdvertisement(incoming)
	s.state.mu.Unlock()

	if created {
		c.JSON(http.StatusCreated, merged)
		return
	}
	c.JSON(http.StatusOK, merged)
}

func (s *Server) handleDownload(c *gin.Context) {
	name := c.Param("name")

	s.state.mu.RLock()
	ad, ok := s.state.findAdvertisement(name)
	s.state.mu.RUnlock()

	if !ok {
		c.JSON(http.StatusNotFound, Advertisement{})
		return
	}
	c.JSON(http.StatusOK, ad)
}

func (s *Server) handleDownloadSuccess(c *gin.Context) {
	name := c.Param("name")

	s.state.mu.Lock()
	found := s.state.deleteAdvertisement(name)
	s.state.mu.Unlock()

	if !found {
		c.JSON(http.StatusNotFound, gin.H{"message": "transfer not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "transfer deleted"})
}

func (s *Server) handleStatus(c *gin.Context) {
	rooms, transfers := s.state.Counts()
	c.JSON(http.StatusOK, gin.H{"rooms": rooms, "transfers": transfers})
}

// HashName hashes a user-facing friendly name into the opaque
// registry key both sides of the transfer use on the wire.
func HashName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:])
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
