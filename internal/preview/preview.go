// Package preview serves rendered question templates over HTTP so a batch
// can be checked in a browser before it is uploaded.
//
// The template and data file are re-read on every request, so edits show
// up on reload.
package preview

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/amti/internal/render"
)

// DefaultPort is the port the preview server listens on.
const DefaultPort = 8000

// ShutdownTimeout bounds how long in-flight requests may run after the
// server is asked to stop.
const ShutdownTimeout = 5 * time.Second

// ErrIndexOutOfRange is returned when a data line does not exist.
var ErrIndexOutOfRange = errors.New("data line index out of range")

// Server renders one data line at a time.
type Server struct {
	templatePath string
	dataPath     string
	logger       *slog.Logger
}

// New returns a Server for a question template and data file.
func New(templatePath, dataPath string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{templatePath: templatePath, dataPath: dataPath, logger: logger}
}

// Router builds the HTTP routes:
//
//	GET /hits/:index/   renders data line index (0-based)
//	GET /?id=N          the same, N defaulting to 0
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.logRequests())
	router.GET("/", func(c *gin.Context) {
		s.serve(c, c.DefaultQuery("id", "0"))
	})
	router.GET("/hits/:index/", func(c *gin.Context) {
		s.serve(c, c.Param("index"))
	})
	return router
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("preview request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) serve(c *gin.Context, raw string) {
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		c.String(http.StatusNotFound, "no data line %q\n", raw)
		return
	}
	page, err := s.Render(index)
	switch {
	case errors.Is(err, ErrIndexOutOfRange):
		c.String(http.StatusNotFound, "%v\n", err)
	case err != nil:
		s.logger.Error("preview failed", "index", index, "error", err)
		c.String(http.StatusInternalServerError, "%v\n", err)
	default:
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
	}
}

// Render returns the question for data line index.
func (s *Server) Render(index int) (string, error) {
	tpl, err := render.CompileFile(s.templatePath)
	if err != nil {
		return "", err
	}
	line, err := s.line(index)
	if err != nil {
		return "", err
	}
	vars := map[string]any{}
	if strings.TrimSpace(string(line)) != "" {
		if vars, err = render.DecodeLine(line); err != nil {
			return "", fmt.Errorf("data line %d: %w", index+1, err)
		}
	}
	return tpl.Execute(vars)
}

// line returns the raw data line at index, counting every line of the file.
func (s *Server) line(index int) ([]byte, error) {
	f, err := os.Open(s.dataPath)
	if err != nil {
		return nil, fmt.Errorf("open data: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for i := 0; scanner.Scan(); i++ {
		if i == index {
			return append([]byte(nil), scanner.Bytes()...), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	return nil, fmt.Errorf("line %d: %w", index, ErrIndexOutOfRange)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully. ready, if non-nil, receives the bound address.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(addr string)) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("preview: listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.logger.Info("running HIT preview server", "addr", listener.Addr().String())
	if ready != nil {
		ready(listener.Addr().String())
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("preview: serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HIT preview server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("preview: shutdown: %w", err)
	}
	return nil
}
