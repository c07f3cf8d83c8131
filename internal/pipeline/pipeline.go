// Package pipeline abstracts the pretrained model invocation units the rest
// of the application treats as opaque. A Factory builds a Pipeline for a task
// kind and model identifier; the Pipeline is the single point of contact with
// the hosted inference backend.
package pipeline

import (
	"context"
	"fmt"
)

// Kind selects the task a pipeline performs.
type Kind string

const (
	KindText  Kind = "text-generation"
	KindImage Kind = "image-to-text"
)

// Record is one result record returned by a pipeline call. The generated_text
// field is optional in the upstream schema; absent means empty string.
type Record struct {
	GeneratedText string `json:"generated_text"`
}

// TextParams carries generation parameters for a text-generation call.
type TextParams struct {
	MaxNewTokens int
	DoSample     bool
	Temperature  float64
}

// CaptionParams carries generation parameters for an image-to-text call.
type CaptionParams struct {
	MaxNewTokens int
}

// Pipeline is a loaded (or loadable) model invocation unit. Implementations
// must be safe to discard at any time; dropping the handle releases whatever
// the backend holds for it on our side.
type Pipeline interface {
	// Load warms the model so later calls do not pay first-use latency.
	Load(ctx context.Context) error
	// GenerateText produces a completion for the prompt.
	GenerateText(ctx context.Context, prompt string, p TextParams) ([]Record, error)
	// CaptionImage produces a caption for the raw encoded image bytes.
	CaptionImage(ctx context.Context, img []byte, p CaptionParams) ([]Record, error)
}

// Factory constructs pipelines for a task kind and model identifier. The
// device hint is advisory; hosted backends own placement.
type Factory interface {
	New(kind Kind, modelID, device string) (Pipeline, error)
}

// DisplayText extracts the generated_text of the first record. When the
// result carries no records it falls back to a string rendering of the whole
// result, mirroring what callers would see from the raw payload.
func DisplayText(recs []Record) string {
	if len(recs) == 0 {
		return fmt.Sprintf("%v", recs)
	}
	return recs[0].GeneratedText
}
