// Package catalog holds the static table of selectable models. Each entry is
// a descriptor: display label, task kind, and the model identifier passed to
// the pipeline factory.
package catalog

import "fmt"

// Kind is the task family of a descriptor.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Descriptor describes one selectable model. Immutable after registration.
type Descriptor struct {
	Label   string
	Kind    Kind
	ModelID string
}

// Catalog is a label-keyed lookup table of descriptors plus per-model briefs.
type Catalog struct {
	order   []string
	byLabel map[string]Descriptor
	briefs  map[string]string
}

const noInfo = "No info available."

// Default returns the built-in catalog: GPT-2 text generation and ViT-GPT2
// image captioning.
func Default() *Catalog {
	c := New()
	c.Add(Descriptor{
		Label:   "GPT-2 (openai-community/gpt2)",
		Kind:    KindText,
		ModelID: "openai-community/gpt2",
	}, "GPT-2 is a causal language model trained to predict the next token. "+
		"Good for short-form generation and quick ideation.")
	c.Add(Descriptor{
		Label:   "ViT-GPT2 (nlpconnect/vit-gpt2-image-captioning)",
		Kind:    KindImage,
		ModelID: "nlpconnect/vit-gpt2-image-captioning",
	}, "ViT-GPT2 couples a Vision Transformer encoder with a GPT-2 decoder to caption images. "+
		"Useful for quick, general-purpose descriptions.")
	return c
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		byLabel: make(map[string]Descriptor),
		briefs:  make(map[string]string),
	}
}

// Add registers a descriptor with an optional brief. Re-adding a label
// replaces the previous entry but keeps its position.
func (c *Catalog) Add(d Descriptor, brief string) {
	if _, ok := c.byLabel[d.Label]; !ok {
		c.order = append(c.order, d.Label)
	}
	c.byLabel[d.Label] = d
	if brief != "" {
		c.briefs[d.ModelID] = brief
	}
}

// Labels returns the display labels in registration order.
func (c *Catalog) Labels() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// ByLabel looks up the descriptor for a display label.
func (c *Catalog) ByLabel(label string) (Descriptor, bool) {
	d, ok := c.byLabel[label]
	return d, ok
}

// ByModelID looks up the first descriptor using the given model identifier.
func (c *Catalog) ByModelID(id string) (Descriptor, bool) {
	for _, label := range c.order {
		if d := c.byLabel[label]; d.ModelID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Brief returns the informational text for a model id, or a fallback when no
// entry exists.
func (c *Catalog) Brief(modelID string) string {
	if b, ok := c.briefs[modelID]; ok {
		return b
	}
	return noInfo
}

// Info renders the sidebar text for a descriptor: a kind-specific title line
// followed by the model brief.
func (c *Catalog) Info(d Descriptor) string {
	title := "Text model"
	if d.Kind == KindImage {
		title = "Image model"
	}
	return fmt.Sprintf("%s: %s\n%s", title, d.ModelID, c.Brief(d.ModelID))
}
