// Package server - HTTP API around a detection controller.
package server

import (
	"context"
	"io"
	log "log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/controller"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/nvr-ai/go-detect/render"
	"github.com/nvr-ai/go-detect/report"
)

// maxImageBytes caps the size of an uploaded image.
const maxImageBytes = 32 << 20

// Server routes HTTP requests to a Controller.
type Server struct {
	controller *controller.Controller
	annotator  render.Annotator
	router     *gin.Engine
}

// New builds the router.
//
// Arguments:
//   - ctrl: The controller to drive.
//   - annotator: Renders GET /annotated; nil disables the route.
//
// Returns:
//   - *Server: The server.
func New(ctrl *controller.Controller, annotator render.Annotator) *Server {
	s := &Server{
		controller: ctrl,
		annotator:  annotator,
		router:     gin.New(),
	}
	s.router.MaxMultipartMemory = maxImageBytes
	s.router.Use(gin.Recovery(), requestLogger())

	s.router.GET("/status", s.status)
	s.router.POST("/image", s.setImage)
	s.router.POST("/detect", s.detect)
	s.router.GET("/annotated", s.annotated)

	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server failed")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.Status())
}

func (s *Server) setImage(c *gin.Context) {
	header, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "multipart field \"image\" is required"})
		return
	}
	if header.Size > maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "image is too large"})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "failed to read upload", "error": err.Error()})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "failed to read upload", "error": err.Error()})
		return
	}

	img, err := images.NewImage(data)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, images.ErrUnsupportedFormat) {
			status = http.StatusUnsupportedMediaType
		}
		c.JSON(status, gin.H{"message": "image not accepted", "error": err.Error()})
		return
	}

	if err := s.controller.SetImage(img); err != nil {
		c.JSON(statusFor(err, http.StatusBadRequest), gin.H{"message": "image not loaded", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"format": img.Format,
		"width":  img.Width,
		"height": img.Height,
		"state":  s.controller.State().String(),
	})
}

// DetectResponse is the body of a successful POST /detect.
type DetectResponse struct {
	RunID         string         `json:"run_id"`
	Summary       report.Summary `json:"summary"`
	InferenceMS   float64        `json:"inference_ms"`
	PostprocessMS float64        `json:"postprocess_ms"`
}

func (s *Server) detect(c *gin.Context) {
	result, err := s.controller.DetectSync(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err, http.StatusInternalServerError), gin.H{"message": "detection failed", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, DetectResponse{
		RunID:         result.RunID,
		Summary:       report.Summarize(s.controller.Classes(), result.Detections),
		InferenceMS:   milliseconds(result.Inference),
		PostprocessMS: milliseconds(result.Postprocess),
	})
}

func (s *Server) annotated(c *gin.Context) {
	if s.annotator == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "no renderer configured"})
		return
	}
	last := s.controller.Last()
	if last == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "no detection result for the current image"})
		return
	}

	png, err := s.annotator.Annotate(last, s.controller.Classes())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "rendering failed", "error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// statusFor maps the detector error taxonomy onto HTTP status codes, or
// fallback for errors outside it.
func statusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, controller.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, controller.ErrNotReady), errors.Is(err, inference.ErrModelNotLoaded):
		return http.StatusPreconditionFailed
	case errors.Is(err, inference.ErrInference):
		return http.StatusBadGateway
	case errors.Is(err, postprocess.ErrShapeMismatch), errors.Is(err, postprocess.ErrConfiguration):
		return http.StatusInternalServerError
	case errors.Is(err, images.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	default:
		return fallback
	}
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
