package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/controller"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/model/preprocess"
	"github.com/nvr-ai/go-detect/models/postprocess"
	"github.com/nvr-ai/go-detect/report"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// MockEngine returns a fixed output, optionally blocking until released.
type MockEngine struct {
	raw     *postprocess.RawOutput
	err     error
	release chan struct{}
	started chan struct{}
}

func (m *MockEngine) Predict(context.Context, *preprocess.Result) (*postprocess.RawOutput, error) {
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.release != nil {
		<-m.release
	}
	return m.raw, m.err
}

func (m *MockEngine) Config() model.Config {
	cfg := model.DefaultConfig()
	cfg.Name = "mock"
	cfg.InputSize = 16
	cfg.Classes = []string{"silla", "mesa"}
	return cfg
}

func (m *MockEngine) Stats() inference.Stats { return inference.Stats{} }
func (m *MockEngine) Close() error           { return nil }

// MockAnnotator records the result it was asked to draw.
type MockAnnotator struct {
	got *controller.Result
	err error
}

func (m *MockAnnotator) Annotate(result *controller.Result, _ *models.ClassSet) ([]byte, error) {
	m.got = result
	if m.err != nil {
		return nil, m.err
	}
	return []byte("\x89PNG"), nil
}

func twoChairsAndATable() *postprocess.RawOutput {
	return &postprocess.RawOutput{
		Data: []float32{
			0.2, 0.2, 0.1, 0.1, 0.9, 0.1,
			0.8, 0.8, 0.1, 0.1, 0.7, 0.2,
			0.5, 0.5, 0.2, 0.2, 0.1, 0.6,
		},
		Anchors: 3,
		Stride:  6,
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 40, 30))))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, "upload.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/image", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func detectRequest() *http.Request {
	return httptest.NewRequest(http.MethodPost, "/detect", nil)
}

func newServer(t *testing.T, engine *MockEngine, annotator *MockAnnotator) (*Server, *controller.Controller) {
	t.Helper()
	ctrl := controller.New()
	if engine != nil {
		require.NoError(t, ctrl.LoadModel(engine))
	}
	if annotator == nil {
		return New(ctrl, nil), ctrl
	}
	return New(ctrl, annotator), ctrl
}

func TestStatus(t *testing.T) {
	s, _ := newServer(t, nil, nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status controller.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "uninitialized", status.State)

	s, _ = newServer(t, &MockEngine{}, nil)
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "model_ready", status.State)
	assert.Equal(t, "mock", status.Model)
	assert.Equal(t, []string{"silla", "mesa"}, status.Classes)
}

func TestImageThenDetect(t *testing.T) {
	annotator := &MockAnnotator{}
	s, ctrl := newServer(t, &MockEngine{raw: twoChairsAndATable()}, annotator)

	rec := serve(s, uploadRequest(t, "image", pngBytes(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"format":"png","width":40,"height":30,"state":"image_ready"}`, rec.Body.String())

	// Nothing to render before the first run.
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/annotated", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(s, detectRequest())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp DetectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, []report.Count{{Label: "silla", Count: 2}, {Label: "mesa", Count: 1}}, resp.Summary.Counts)
	require.Len(t, resp.Summary.Items, 3)
	assert.Equal(t, "silla 90.0%", resp.Summary.Items[0].Caption)
	assert.Equal(t, "mesa 60.0%", resp.Summary.Items[2].Caption)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/annotated", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Same(t, ctrl.Last(), annotator.got)
}

func TestDetectEmpty(t *testing.T) {
	s, _ := newServer(t, &MockEngine{raw: &postprocess.RawOutput{Data: []float32{}, Stride: 6}}, nil)
	require.Equal(t, http.StatusOK, serve(s, uploadRequest(t, "image", pngBytes(t))).Code)

	rec := serve(s, detectRequest())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DetectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Summary.Items)
	assert.Empty(t, resp.Summary.Counts)
}

func TestDetectErrors(t *testing.T) {
	tests := []struct {
		name     string
		engine   *MockEngine
		upload   bool
		expected int
	}{
		{"no model", nil, false, http.StatusPreconditionFailed},
		{"no image", &MockEngine{raw: twoChairsAndATable()}, false, http.StatusPreconditionFailed},
		{"inference failure", &MockEngine{err: errors.Wrap(inference.ErrInference, "device lost")}, true, http.StatusBadGateway},
		{"model closed", &MockEngine{err: inference.ErrModelNotLoaded}, true, http.StatusPreconditionFailed},
		{"shape mismatch", &MockEngine{raw: &postprocess.RawOutput{Data: make([]float32, 7), Anchors: 1, Stride: 7}}, true, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newServer(t, tt.engine, nil)
			if tt.upload {
				require.Equal(t, http.StatusOK, serve(s, uploadRequest(t, "image", pngBytes(t))).Code)
			}

			rec := serve(s, detectRequest())
			assert.Equal(t, tt.expected, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), "detection failed")
		})
	}
}

func TestDetectBusy(t *testing.T) {
	engine := &MockEngine{
		raw:     twoChairsAndATable(),
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	s, _ := newServer(t, engine, nil)
	require.Equal(t, http.StatusOK, serve(s, uploadRequest(t, "image", pngBytes(t))).Code)

	first := make(chan int, 1)
	go func() { first <- serve(s, detectRequest()).Code }()
	<-engine.started

	assert.Equal(t, http.StatusConflict, serve(s, detectRequest()).Code)
	assert.Equal(t, http.StatusConflict, serve(s, uploadRequest(t, "image", pngBytes(t))).Code)

	close(engine.release)
	assert.Equal(t, http.StatusOK, <-first)
}

func TestImageErrors(t *testing.T) {
	t.Run("missing field", func(t *testing.T) {
		s, _ := newServer(t, &MockEngine{}, nil)
		rec := serve(s, uploadRequest(t, "file", pngBytes(t)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unsupported format", func(t *testing.T) {
		s, _ := newServer(t, &MockEngine{}, nil)
		rec := serve(s, uploadRequest(t, "image", []byte("plain text, not an image")))
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("no model", func(t *testing.T) {
		s, _ := newServer(t, nil, nil)
		rec := serve(s, uploadRequest(t, "image", pngBytes(t)))
		assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	})
}

func TestAnnotatedErrors(t *testing.T) {
	t.Run("no renderer", func(t *testing.T) {
		s, _ := newServer(t, &MockEngine{}, nil)
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/annotated", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("renderer failure", func(t *testing.T) {
		annotator := &MockAnnotator{err: errors.New("no display")}
		s, _ := newServer(t, &MockEngine{raw: twoChairsAndATable()}, annotator)
		require.Equal(t, http.StatusOK, serve(s, uploadRequest(t, "image", pngBytes(t))).Code)
		require.Equal(t, http.StatusOK, serve(s, detectRequest()).Code)

		rec := serve(s, httptest.NewRequest(http.MethodGet, "/annotated", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s, _ := newServer(t, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	cancel()
	assert.NoError(t, <-done)
}
