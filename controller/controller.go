// Package controller - Drives one detector through model load, image load and detection runs.
package controller

import (
	"context"
	"image"
	log "log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/model/preprocess"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

var (
	// ErrBusy is returned when a detection is triggered, or the model or image
	// replaced, while a run is in progress. Triggers are never queued.
	ErrBusy = errors.New("detection already in progress")

	// ErrNotReady is returned when an operation needs a model or image that
	// has not been loaded yet.
	ErrNotReady = errors.New("detector not ready")
)

// State is the lifecycle state of a Controller.
type State int

const (
	// StateUninitialized has no model.
	StateUninitialized State = iota
	// StateModelReady has a model but no image.
	StateModelReady
	// StateImageReady has a model and a preprocessed image.
	StateImageReady
	// StateDetecting is running a detection.
	StateDetecting
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateModelReady:
		return "model_ready"
	case StateImageReady:
		return "image_ready"
	case StateDetecting:
		return "detecting"
	default:
		return "unknown"
	}
}

// Result is the outcome of one successful detection run.
type Result struct {
	// RunID identifies the run in logs.
	RunID string
	// Detections are the surviving detections in selection order.
	Detections []postprocess.Detection
	// Source is the decoded input image.
	Source image.Image
	// Letterbox maps normalized boxes back onto Source.
	Letterbox preprocess.Letterbox
	// Inference is the time spent in the model.
	Inference time.Duration
	// Postprocess is the time spent decoding and suppressing.
	Postprocess time.Duration
}

// Outcome is delivered once per Detect call.
type Outcome struct {
	Result *Result
	Err    error
}

// Status is a snapshot of the controller for display.
type Status struct {
	State     string          `json:"state"`
	Model     string          `json:"model,omitempty"`
	Classes   []string        `json:"classes,omitempty"`
	Stats     inference.Stats `json:"stats"`
	LastRunID string          `json:"last_run_id,omitempty"`
}

// loadedImage is a source image and its model tensor.
type loadedImage struct {
	source image.Image
	input  *preprocess.Result
}

// Controller owns the detector state. It is safe for concurrent use.
type Controller struct {
	mu    sync.Mutex
	state State

	engine       inference.Engine
	pipeline     *postprocess.Pipeline
	preprocessor *preprocess.Preprocessor
	classes      *models.ClassSet

	image *loadedImage
	last  *Result

	runs sync.WaitGroup
}

// New returns a Controller with no model.
func New() *Controller {
	return &Controller{state: StateUninitialized}
}

// LoadModel installs an engine, replacing and closing the previous one.
//
// A previously set image is preprocessed again for the new model input.
//
// Arguments:
//   - engine: The engine to use. The controller takes ownership and closes it
//     when the load fails.
//
// Returns:
//   - error: ErrBusy during a run, or ErrConfiguration for an invalid model
//     configuration. The previous model stays in place on error.
func (c *Controller) LoadModel(engine inference.Engine) (err error) {
	defer func() {
		if err == nil {
			return
		}
		if cerr := engine.Close(); cerr != nil {
			log.Warn("failed to close rejected model", "error", cerr)
		}
	}()

	cfg := engine.Config()

	pipeline, err := postprocess.NewPipeline(cfg.PipelineConfig())
	if err != nil {
		return err
	}
	preprocessor, err := preprocess.NewPreprocessor(cfg.PreprocessConfig())
	if err != nil {
		return err
	}
	classes, err := models.NewClassSet(cfg.Classes)
	if err != nil {
		return errors.Wrap(postprocess.ErrConfiguration, err.Error())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDetecting {
		return ErrBusy
	}

	var reloaded *loadedImage
	if c.image != nil {
		input, err := preprocessor.PreprocessImage(c.image.source)
		if err != nil {
			return errors.Wrap(err, "failed to preprocess the current image for the new model")
		}
		reloaded = &loadedImage{source: c.image.source, input: input}
	}

	if c.engine != nil {
		if err := c.engine.Close(); err != nil {
			log.Warn("failed to close previous model", "error", err)
		}
	}

	c.engine = engine
	c.pipeline = pipeline
	c.preprocessor = preprocessor
	c.classes = classes
	c.image = reloaded
	c.last = nil
	c.state = StateModelReady
	if reloaded != nil {
		c.state = StateImageReady
	}

	log.Info("detector model ready", "model", cfg.Name, "classes", classes.Len(), "state", c.state.String())
	return nil
}

// SetImage decodes and preprocesses the image for the next detection.
//
// Arguments:
//   - img: The encoded JPEG or PNG image.
//
// Returns:
//   - error: ErrNotReady without a model, ErrBusy during a run, or a decode error.
func (c *Controller) SetImage(img *images.Image) error {
	if img == nil {
		return errors.New("image is nil")
	}

	c.mu.Lock()
	if c.state == StateDetecting {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.preprocessor == nil {
		c.mu.Unlock()
		return errors.Wrap(ErrNotReady, "load a model first")
	}
	preprocessor := c.preprocessor
	c.mu.Unlock()

	source, err := img.Decode()
	if err != nil {
		return err
	}
	input, err := preprocessor.PreprocessImage(source)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// The model or state may have moved on while decoding.
	if c.state == StateDetecting {
		return ErrBusy
	}
	if c.preprocessor != preprocessor {
		return errors.Wrap(ErrNotReady, "model changed while loading the image")
	}

	c.image = &loadedImage{source: source, input: input}
	c.last = nil
	c.state = StateImageReady

	log.Debug("image ready",
		"format", img.Format,
		"width", source.Bounds().Dx(),
		"height", source.Bounds().Dy(),
	)
	return nil
}

// Detect starts a detection run on its own goroutine and returns at once.
//
// The run ignores cancellation of ctx; it always completes and delivers
// exactly one Outcome on the returned channel, which is then closed.
//
// Arguments:
//   - ctx: Values are passed to the engine; cancellation is not.
//
// Returns:
//   - <-chan Outcome: Receives the run outcome.
//   - error: ErrBusy if a run is in progress, ErrNotReady without a model and image.
func (c *Controller) Detect(ctx context.Context) (<-chan Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateDetecting:
		return nil, ErrBusy
	case StateImageReady:
	default:
		return nil, errors.Wrapf(ErrNotReady, "state is %s", c.state)
	}

	c.state = StateDetecting
	runID := uuid.NewString()
	engine, pipeline, img := c.engine, c.pipeline, c.image

	out := make(chan Outcome, 1)
	c.runs.Add(1)
	go func() {
		defer c.runs.Done()
		defer close(out)

		result, err := run(context.WithoutCancel(ctx), runID, engine, pipeline, img)

		c.mu.Lock()
		c.state = StateImageReady
		if err == nil {
			c.last = result
		}
		c.mu.Unlock()

		out <- Outcome{Result: result, Err: err}
	}()

	return out, nil
}

// DetectSync runs a detection and waits for its outcome.
func (c *Controller) DetectSync(ctx context.Context) (*Result, error) {
	ch, err := c.Detect(ctx)
	if err != nil {
		return nil, err
	}
	outcome := <-ch
	return outcome.Result, outcome.Err
}

func run(
	ctx context.Context,
	runID string,
	engine inference.Engine,
	pipeline *postprocess.Pipeline,
	img *loadedImage,
) (*Result, error) {
	logger := log.With("run_id", runID)
	logger.Debug("detection started")

	start := time.Now()
	raw, err := engine.Predict(ctx, img.input)
	inferenceTime := time.Since(start)
	if err != nil {
		logger.Warn("inference failed", "error", err, "duration", inferenceTime)
		return nil, err
	}

	start = time.Now()
	detections, err := pipeline.Run(raw)
	postprocessTime := time.Since(start)
	if err != nil {
		logger.Warn("post-processing failed", "error", err)
		return nil, err
	}

	logger.Info("detection finished",
		"detections", len(detections),
		"anchors", raw.Anchors,
		"inference", inferenceTime,
		"postprocess", postprocessTime,
	)

	return &Result{
		RunID:       runID,
		Detections:  detections,
		Source:      img.source,
		Letterbox:   img.input.Letterbox,
		Inference:   inferenceTime,
		Postprocess: postprocessTime,
	}, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Last returns the result of the latest successful run since the image was
// set, or nil.
func (c *Controller) Last() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Classes returns the class set of the loaded model, or nil.
func (c *Controller) Classes() *models.ClassSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.classes
}

// Status returns a display snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := Status{State: c.state.String()}
	if c.engine != nil {
		status.Model = c.engine.Config().Name
		status.Stats = c.engine.Stats()
	}
	if c.classes != nil {
		status.Classes = c.classes.Names()
	}
	if c.last != nil {
		status.LastRunID = c.last.RunID
	}
	return status
}

// Close waits for a running detection and releases the model.
func (c *Controller) Close() error {
	c.runs.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine == nil {
		return nil
	}
	err := c.engine.Close()
	c.engine = nil
	c.pipeline = nil
	c.preprocessor = nil
	c.classes = nil
	c.image = nil
	c.last = nil
	c.state = StateUninitialized
	return err
}
