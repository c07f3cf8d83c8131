// Package adapter wraps the pretrained pipelines behind a uniform Load/Run
// contract. Adapters instantiate their pipeline lazily on first use and
// validate input before delegating; everything past validation is the
// pipeline's problem and propagates to the caller untouched.
package adapter

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hfstudio/internal/common/fsutil"
	"hfstudio/internal/pipeline"
)

// Text generation defaults. The GUI overrides max new tokens per call.
const (
	DefaultTextMaxNewTokens = 60
	DefaultTextTemperature  = 0.8
)

// DefaultCaptionMaxNewTokens bounds caption length.
const DefaultCaptionMaxNewTokens = 30

// TextOption overrides a text generation parameter for one Run call.
type TextOption func(*pipeline.TextParams)

// WithMaxNewTokens sets the maximum number of new tokens to generate.
func WithMaxNewTokens(n int) TextOption {
	return func(p *pipeline.TextParams) { p.MaxNewTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) TextOption {
	return func(p *pipeline.TextParams) { p.Temperature = t }
}

// WithSampling toggles sampling.
func WithSampling(on bool) TextOption {
	return func(p *pipeline.TextParams) { p.DoSample = on }
}

// CaptionOption overrides a caption parameter for one Run call.
type CaptionOption func(*pipeline.CaptionParams)

// WithCaptionMaxNewTokens sets the maximum number of new tokens for a caption.
func WithCaptionMaxNewTokens(n int) CaptionOption {
	return func(p *pipeline.CaptionParams) { p.MaxNewTokens = n }
}

// TextAdapter wraps a text-generation pipeline.
type TextAdapter struct {
	ModelID string
	Device  string

	factory pipeline.Factory
	pipe    pipeline.Pipeline
	log     zerolog.Logger
}

// NewTextAdapter constructs an unloaded text adapter. The pipeline is built
// by factory on first Load or Run.
func NewTextAdapter(factory pipeline.Factory, modelID, device string, log zerolog.Logger) *TextAdapter {
	return &TextAdapter{ModelID: modelID, Device: device, factory: factory, log: log}
}

// Loaded reports whether the underlying pipeline handle exists.
func (a *TextAdapter) Loaded() bool { return a.pipe != nil }

// Load constructs the text-generation pipeline, replacing any previous
// handle. Returns the adapter for chaining.
func (a *TextAdapter) Load(ctx context.Context) (*TextAdapter, error) {
	a.log.Info().Str("model", a.ModelID).Msg("loading text-generation pipeline")
	start := time.Now()
	p, err := a.factory.New(pipeline.KindText, a.ModelID, a.Device)
	if err != nil {
		return nil, err
	}
	if err := p.Load(ctx); err != nil {
		return nil, err
	}
	a.pipe = p
	a.log.Info().Float64("seconds", time.Since(start).Seconds()).Msg("load() finished")
	return a, nil
}

// Run generates a completion for prompt. A blank prompt fails validation
// before the pipeline is constructed or invoked; an unloaded adapter loads
// implicitly first.
func (a *TextAdapter) Run(ctx context.Context, prompt string, opts ...TextOption) ([]pipeline.Record, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrInvalidInput("prompt cannot be empty")
	}
	if a.pipe == nil {
		if _, err := a.Load(ctx); err != nil {
			return nil, err
		}
	}
	params := pipeline.TextParams{
		MaxNewTokens: DefaultTextMaxNewTokens,
		DoSample:     true,
		Temperature:  DefaultTextTemperature,
	}
	for _, o := range opts {
		o(&params)
	}
	start := time.Now()
	recs, err := a.pipe.GenerateText(ctx, prompt, params)
	a.log.Info().Float64("seconds", time.Since(start).Seconds()).Msg("run() finished")
	return recs, err
}

// CaptionAdapter wraps an image-to-text pipeline.
type CaptionAdapter struct {
	ModelID string
	Device  string

	factory pipeline.Factory
	pipe    pipeline.Pipeline
	log     zerolog.Logger
}

// NewCaptionAdapter constructs an unloaded caption adapter.
func NewCaptionAdapter(factory pipeline.Factory, modelID, device string, log zerolog.Logger) *CaptionAdapter {
	return &CaptionAdapter{ModelID: modelID, Device: device, factory: factory, log: log}
}

// Loaded reports whether the underlying pipeline handle exists.
func (a *CaptionAdapter) Loaded() bool { return a.pipe != nil }

// Load constructs the image-to-text pipeline, replacing any previous handle.
func (a *CaptionAdapter) Load(ctx context.Context) (*CaptionAdapter, error) {
	a.log.Info().Str("model", a.ModelID).Msg("loading image-to-text pipeline")
	start := time.Now()
	p, err := a.factory.New(pipeline.KindImage, a.ModelID, a.Device)
	if err != nil {
		return nil, err
	}
	if err := p.Load(ctx); err != nil {
		return nil, err
	}
	a.pipe = p
	a.log.Info().Float64("seconds", time.Since(start).Seconds()).Msg("load() finished")
	return a, nil
}

// Run captions the image at imagePath. The path is validated (non-blank,
// existing file) before the pipeline is constructed or invoked.
func (a *CaptionAdapter) Run(ctx context.Context, imagePath string, opts ...CaptionOption) ([]pipeline.Record, error) {
	if strings.TrimSpace(imagePath) == "" {
		return nil, ErrInvalidInput("image path cannot be empty")
	}
	if !fsutil.PathExists(imagePath) {
		return nil, ErrFileNotFound(imagePath)
	}
	if a.pipe == nil {
		if _, err := a.Load(ctx); err != nil {
			return nil, err
		}
	}
	img, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, ErrFileNotFound(imagePath)
	}
	params := pipeline.CaptionParams{MaxNewTokens: DefaultCaptionMaxNewTokens}
	for _, o := range opts {
		o(&params)
	}
	start := time.Now()
	recs, err := a.pipe.CaptionImage(ctx, img, params)
	a.log.Info().Float64("seconds", time.Since(start).Seconds()).Msg("run() finished")
	return recs, err
}

// RunBytes captions raw encoded image bytes. Used by the headless API, where
// the image arrives in the request body rather than on disk.
func (a *CaptionAdapter) RunBytes(ctx context.Context, img []byte, opts ...CaptionOption) ([]pipeline.Record, error) {
	if len(img) == 0 {
		return nil, ErrInvalidInput("image data cannot be empty")
	}
	if a.pipe == nil {
		if _, err := a.Load(ctx); err != nil {
			return nil, err
		}
	}
	params := pipeline.CaptionParams{MaxNewTokens: DefaultCaptionMaxNewTokens}
	for _, o := range opts {
		o(&params)
	}
	start := time.Now()
	recs, err := a.pipe.CaptionImage(ctx, img, params)
	a.log.Info().Float64("seconds", time.Since(start).Seconds()).Msg("run() finished")
	return recs, err
}
