// Command detect runs the detector once over image files, or serves it over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	log "log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/controller"
	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/inference/onnx"
	"github.com/nvr-ai/go-detect/inference/tflite"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/render"
	"github.com/nvr-ai/go-detect/render/opencv"
	"github.com/nvr-ai/go-detect/report"
	"github.com/nvr-ai/go-detect/server"
	"github.com/nvr-ai/go-detect/util"
)

type options struct {
	configPath string
	modelPath  string
	engine     string
	imagePath  string
	outPath    string
	serveAddr  string
	logLevel   string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to a YAML model configuration")
	flag.StringVar(&opts.modelPath, "model", "", "Path to the model file (overrides the configuration)")
	flag.StringVar(&opts.engine, "engine", "", "Inference engine: onnx or tflite (overrides the configuration)")
	flag.StringVar(&opts.imagePath, "image", "", "JPEG or PNG file to run once; a directory runs each image in it in turn")
	flag.StringVar(&opts.outPath, "out", "", "Write the annotated PNG here (a directory when -image is a directory)")
	flag.StringVar(&opts.serveAddr, "serve", "", "Serve the HTTP API on this address, e.g. :8080")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flag.Parse()

	if err := util.ConfigureLogging(opts.logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		log.Error("detect failed", "error", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	if opts.imagePath == "" && opts.serveAddr == "" {
		return errors.New("one of -image or -serve is required")
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	engine, err := inference.NewEngineBuilder().
		WithOpener(model.EngineONNX, onnx.Open).
		WithOpener(model.EngineTFLite, tflite.Open).
		WithModel(cfg).
		Build()
	if err != nil {
		return err
	}

	ctrl := controller.New()
	defer ctrl.Close()

	if err := ctrl.LoadModel(engine); err != nil {
		return err
	}

	renderer := opencv.NewRenderer(render.DefaultStyle())

	if opts.imagePath != "" {
		if err := detectFiles(ctrl, renderer, opts.imagePath, opts.outPath); err != nil {
			return err
		}
	}

	if opts.serveAddr != "" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.New(ctrl, renderer).Run(ctx, opts.serveAddr)
	}
	return nil
}

func loadConfig(opts options) (model.Config, error) {
	cfg := model.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = model.Load(opts.configPath); err != nil {
			return cfg, err
		}
	}

	if opts.modelPath != "" {
		cfg.Path = opts.modelPath
		if opts.engine == "" {
			cfg.Engine = engineForPath(opts.modelPath, cfg.Engine)
		}
	}
	if opts.engine != "" {
		cfg.Engine = model.EngineType(strings.ToLower(opts.engine))
	}

	return cfg, cfg.Validate()
}

// engineForPath guesses the engine from the model file extension.
func engineForPath(path string, fallback model.EngineType) model.EngineType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".onnx":
		return model.EngineONNX
	case ".tflite":
		return model.EngineTFLite
	default:
		return fallback
	}
}

func detectFiles(ctrl *controller.Controller, annotator render.Annotator, path, out string) error {
	files, err := util.LoadImageFiles(path)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.Errorf("no images found in %s", path)
	}

	many := len(files) > 1
	if many && out != "" {
		if err := os.MkdirAll(out, 0o755); err != nil {
			return errors.Wrap(err, "failed to create output directory")
		}
	}

	for _, f := range files {
		if err := ctrl.SetImage(f.Image); err != nil {
			return errors.Wrapf(err, "failed to load %s", f.Path)
		}

		result, err := ctrl.DetectSync(context.Background())
		if err != nil {
			return errors.Wrapf(err, "detection failed for %s", f.Path)
		}

		if many {
			fmt.Printf("%s\n", f.Path)
		}
		summary := report.Summarize(ctrl.Classes(), result.Detections)
		if err := report.WriteCounts(os.Stdout, summary.Counts); err != nil {
			return err
		}

		if out == "" {
			continue
		}
		target := out
		if many {
			name := strings.TrimSuffix(filepath.Base(f.Path), filepath.Ext(f.Path))
			target = filepath.Join(out, name+".annotated.png")
		}
		png, err := annotator.Annotate(result, ctrl.Classes())
		if err != nil {
			return errors.Wrapf(err, "failed to render %s", f.Path)
		}
		if err := os.WriteFile(target, png, 0o644); err != nil {
			return errors.Wrap(err, "failed to write annotated image")
		}
		log.Info("annotated image written", "path", target, "detections", len(result.Detections))
	}

	return nil
}
