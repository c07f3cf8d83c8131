package gui

import (
	"context"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"fyne.io/fyne/v2/test"
	"github.com/rs/zerolog"

	"hfstudio/internal/catalog"
	"hfstudio/internal/pipeline"
)

type countingPipeline struct {
	loads int
	calls int
	recs  []pipeline.Record
}

func (p *countingPipeline) Load(ctx context.Context) error { p.loads++; return nil }

func (p *countingPipeline) GenerateText(ctx context.Context, prompt string, tp pipeline.TextParams) ([]pipeline.Record, error) {
	p.calls++
	return p.recs, nil
}

func (p *countingPipeline) CaptionImage(ctx context.Context, img []byte, cp pipeline.CaptionParams) ([]pipeline.Record, error) {
	p.calls++
	return p.recs, nil
}

type countingFactory struct {
	pipe *countingPipeline
	news int
}

func (f *countingFactory) New(kind pipeline.Kind, modelID, device string) (pipeline.Pipeline, error) {
	f.news++
	return f.pipe, nil
}

func newTestApp(t *testing.T, recs []pipeline.Record) (*App, *countingFactory) {
	t.Helper()
	ff := &countingFactory{pipe: &countingPipeline{recs: recs}}
	a := newWithApp(test.NewApp(), ff, catalog.Default(), "", zerolog.New(io.Discard))
	return a, ff
}

func textLabel(t *testing.T, a *App) string {
	t.Helper()
	for _, l := range a.cat.Labels() {
		if d, _ := a.cat.ByLabel(l); d.Kind == catalog.KindText {
			return l
		}
	}
	t.Fatal("no text descriptor")
	return ""
}

func imageLabel(t *testing.T, a *App) string {
	t.Helper()
	for _, l := range a.cat.Labels() {
		if d, _ := a.cat.ByLabel(l); d.Kind == catalog.KindImage {
			return l
		}
	}
	t.Fatal("no image descriptor")
	return ""
}

func writeTestPNG(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cat.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func TestStartup_TextPanelVisible(t *testing.T) {
	a, _ := newTestApp(t, nil)
	if a.selected.Kind != catalog.KindText {
		t.Fatalf("expected text descriptor selected, got %+v", a.selected)
	}
	if len(a.panelSlot.Objects) != 1 || a.panelSlot.Objects[0] != a.textPanel {
		t.Fatalf("text panel not the visible panel")
	}
}

func TestModelSwitch_ResetsAdaptersAndPanel(t *testing.T) {
	a, ff := newTestApp(t, []pipeline.Record{{GeneratedText: "out"}})
	a.prompt.SetText("Hello world")
	a.onGenerate()
	if a.txtAdapter == nil {
		t.Fatalf("expected text adapter after generate")
	}
	a.selector.SetSelected(imageLabel(t, a))
	if a.txtAdapter != nil || a.capAdapter != nil {
		t.Fatalf("adapters not reset on model switch")
	}
	if a.panelSlot.Objects[0] != a.imagePanel {
		t.Fatalf("image panel not shown after switch")
	}
	news := ff.news
	a.selector.SetSelected(textLabel(t, a))
	a.onGenerate()
	if ff.news != news+1 {
		t.Fatalf("expected fresh pipeline construction after switch back")
	}
}

func TestGenerate_Scenario(t *testing.T) {
	a, ff := newTestApp(t, []pipeline.Record{{GeneratedText: "Hello world, said the model"}})
	a.prompt.SetText("Hello world")
	a.onGenerate()
	if a.output.Text != "Hello world, said the model" {
		t.Fatalf("unexpected output: %q", a.output.Text)
	}
	if !a.output.Disabled() {
		t.Fatalf("output should be read-only after write")
	}
	if a.status.Text != "Generated with openai-community/gpt2" {
		t.Fatalf("unexpected status: %q", a.status.Text)
	}
	if ff.pipe.loads != 1 || ff.pipe.calls != 1 {
		t.Fatalf("unexpected pipeline usage: loads=%d calls=%d", ff.pipe.loads, ff.pipe.calls)
	}
}

func TestGenerate_BlankPromptNoPipelineCall(t *testing.T) {
	a, ff := newTestApp(t, []pipeline.Record{{GeneratedText: "x"}})
	a.setOutput(a.output, "previous", true)
	a.prompt.SetText("   \n ")
	a.onGenerate()
	if ff.news != 0 || ff.pipe.calls != 0 {
		t.Fatalf("pipeline touched for blank prompt")
	}
	if a.output.Text != "previous" {
		t.Fatalf("output changed: %q", a.output.Text)
	}
}

func TestGenerate_WrongModelKind(t *testing.T) {
	a, ff := newTestApp(t, []pipeline.Record{{GeneratedText: "x"}})
	a.selector.SetSelected(imageLabel(t, a))
	a.prompt.SetText("Hello")
	a.onGenerate()
	if ff.news != 0 || ff.pipe.calls != 0 {
		t.Fatalf("pipeline touched for wrong model kind")
	}
}

func TestCaption_NoImageSelected(t *testing.T) {
	a, ff := newTestApp(t, []pipeline.Record{{GeneratedText: "x"}})
	a.selector.SetSelected(imageLabel(t, a))
	a.onCaption()
	if ff.news != 0 || ff.pipe.calls != 0 {
		t.Fatalf("pipeline touched with no image browsed")
	}
}

func TestCaption_Scenario(t *testing.T) {
	a, ff := newTestApp(t, []pipeline.Record{{GeneratedText: "a cat on a sofa"}})
	a.selector.SetSelected(imageLabel(t, a))
	a.selectImage(writeTestPNG(t))
	a.onCaption()
	if a.captionOut.Text != "a cat on a sofa" {
		t.Fatalf("unexpected caption: %q", a.captionOut.Text)
	}
	if !a.captionOut.Disabled() {
		t.Fatalf("caption area should be read-only")
	}
	if ff.pipe.loads != 1 || ff.pipe.calls != 1 {
		t.Fatalf("unexpected pipeline usage: loads=%d calls=%d", ff.pipe.loads, ff.pipe.calls)
	}
}

func TestClearText_PromptEditableOutputDisabled(t *testing.T) {
	a, _ := newTestApp(t, []pipeline.Record{{GeneratedText: "out"}})
	a.prompt.SetText("Hello world")
	a.onGenerate()
	a.onClearText()
	if a.prompt.Text != "" || a.prompt.Disabled() {
		t.Fatalf("prompt should be empty and editable")
	}
	if a.output.Text != "" || !a.output.Disabled() {
		t.Fatalf("output should be empty and disabled")
	}
	if a.status.Text != "Cleared" {
		t.Fatalf("unexpected status: %q", a.status.Text)
	}
}

func TestClearImage_ResetsEverything(t *testing.T) {
	a, _ := newTestApp(t, []pipeline.Record{{GeneratedText: "a cat"}})
	a.selector.SetSelected(imageLabel(t, a))
	a.selectImage(writeTestPNG(t))
	a.onCaption()
	a.onClearImage()
	if a.imgPath != "" || a.thumb.Image != nil {
		t.Fatalf("image state not reset")
	}
	if a.pathLabel.Text != noImageText {
		t.Fatalf("path label not reset: %q", a.pathLabel.Text)
	}
	if a.captionOut.Text != "" {
		t.Fatalf("caption not cleared")
	}
}

func TestSelectImage_PreviewFailureKeepsPath(t *testing.T) {
	a, _ := newTestApp(t, nil)
	broken := filepath.Join(t.TempDir(), "broken.png")
	if err := os.WriteFile(broken, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	a.selectImage(broken)
	if a.imgPath != broken {
		t.Fatalf("path rolled back on preview failure: %q", a.imgPath)
	}
	if a.thumb.Image != nil {
		t.Fatalf("thumbnail set despite decode failure")
	}
}
