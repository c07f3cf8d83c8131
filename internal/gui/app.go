// Package gui is the desktop front-end: one window, a model selector, and a
// text or image panel depending on the selected model's kind. All state lives
// on the App struct and is only touched from UI callbacks, which the toolkit
// dispatches one at a time.
package gui

import (
	"context"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"hfstudio/internal/adapter"
	"hfstudio/internal/catalog"
	"hfstudio/internal/pipeline"
	"hfstudio/internal/preview"
)

const windowTitle = "hfstudio — Text (GPT-2) + Image Captioning (ViT-GPT2)"

const noImageText = "No image selected"

const tipsText = "• First run may take a while: the hosted model warms up on demand.\n" +
	"• Clear buttons reset inputs quickly.\n" +
	"• Switch model with the selector; only the relevant controls are shown.\n" +
	"• Loading is lazy: the model loads the first time you use it."

// imageExtensions filters the file picker to common image formats.
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".webp", ".gif"}

// App owns the window and every piece of transient UI state.
type App struct {
	fapp fyne.App
	win  fyne.Window
	log  zerolog.Logger

	factory pipeline.Factory
	cat     *catalog.Catalog
	device  string

	selected catalog.Descriptor

	// Adapters are created lazily for the selected model and dropped on
	// every selection change.
	txtAdapter *adapter.TextAdapter
	capAdapter *adapter.CaptionAdapter

	imgPath string

	selector   *widget.Select
	prompt     *widget.Entry
	output     *widget.Entry
	status     *widget.Label
	pathLabel  *widget.Label
	thumb      *canvas.Image
	captionOut *widget.Entry
	infoLabel  *widget.Label

	textPanel  fyne.CanvasObject
	imagePanel fyne.CanvasObject
	panelSlot  *fyne.Container
}

// New builds the application window and widgets.
func New(factory pipeline.Factory, cat *catalog.Catalog, device string, log zerolog.Logger) *App {
	return newWithApp(app.NewWithID("studio.hf.hfstudio"), factory, cat, device, log)
}

func newWithApp(fapp fyne.App, factory pipeline.Factory, cat *catalog.Catalog, device string, log zerolog.Logger) *App {
	a := &App{
		fapp:    fapp,
		log:     log,
		factory: factory,
		cat:     cat,
		device:  device,
	}
	a.win = fapp.NewWindow(windowTitle)
	a.win.Resize(fyne.NewSize(1180, 760))
	a.buildUI()

	labels := cat.Labels()
	if len(labels) > 0 {
		a.selector.SetSelected(labels[0])
	}
	return a
}

// Run shows the window and enters the event loop. Returns on window close.
func (a *App) Run() {
	a.win.ShowAndRun()
}

func (a *App) buildUI() {
	a.selector = widget.NewSelect(a.cat.Labels(), a.onModelChanged)

	a.prompt = widget.NewMultiLineEntry()
	a.prompt.Wrapping = fyne.TextWrapWord
	a.prompt.SetPlaceHolder("Enter a prompt…")
	a.prompt.SetMinRowsVisible(6)

	a.output = widget.NewMultiLineEntry()
	a.output.Wrapping = fyne.TextWrapWord
	a.output.SetMinRowsVisible(10)
	a.output.Disable()

	a.status = widget.NewLabel("Ready")

	generateBtn := widget.NewButton("Generate", a.onGenerate)
	clearTextBtn := widget.NewButton("Clear", a.onClearText)

	a.textPanel = container.NewVBox(
		widget.NewLabel("Prompt"),
		a.prompt,
		container.NewHBox(generateBtn, clearTextBtn, layout.NewSpacer(), a.status),
		widget.NewLabel("Output"),
		a.output,
	)

	a.pathLabel = widget.NewLabel(noImageText)
	a.pathLabel.Truncation = fyne.TextTruncateEllipsis

	a.thumb = canvas.NewImageFromImage(nil)
	a.thumb.FillMode = canvas.ImageFillContain
	a.thumb.SetMinSize(fyne.NewSize(preview.MaxDim, preview.MaxDim))

	a.captionOut = widget.NewMultiLineEntry()
	a.captionOut.Wrapping = fyne.TextWrapWord
	a.captionOut.SetMinRowsVisible(8)
	a.captionOut.Disable()

	browseBtn := widget.NewButton("Browse Image", a.onBrowse)
	captionBtn := widget.NewButton("Generate Caption", a.onCaption)
	clearImageBtn := widget.NewButton("Clear", a.onClearImage)

	a.imagePanel = container.NewVBox(
		container.NewHBox(browseBtn, a.pathLabel),
		container.NewHBox(a.thumb, container.NewVBox(captionBtn, clearImageBtn)),
		widget.NewLabel("Caption"),
		a.captionOut,
	)

	a.panelSlot = container.NewStack()

	left := container.NewVBox(
		container.NewHBox(widget.NewLabel("Model"), a.selector),
		a.panelSlot,
	)

	a.infoLabel = widget.NewLabel("")
	a.infoLabel.Wrapping = fyne.TextWrapWord
	tips := widget.NewLabel(tipsText)
	tips.Wrapping = fyne.TextWrapWord
	right := container.NewVBox(
		widget.NewLabelWithStyle("Selected Model Info", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		a.infoLabel,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Tips", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		tips,
	)

	split := container.NewHSplit(left, right)
	split.Offset = 0.7

	header := widget.NewLabelWithStyle(
		"Hugging Face — Text (GPT-2) + Image Captioning (ViT-GPT2)",
		fyne.TextAlignLeading, fyne.TextStyle{Bold: true},
	)
	a.win.SetContent(container.NewBorder(header, nil, nil, nil, split))
}

// onModelChanged drops both adapters so the new selection loads lazily on
// next use, then swaps the visible panel to the descriptor's kind.
func (a *App) onModelChanged(label string) {
	d, ok := a.cat.ByLabel(label)
	if !ok {
		return
	}
	a.selected = d
	a.txtAdapter = nil
	a.capAdapter = nil
	a.showPanel()
	a.infoLabel.SetText(a.cat.Info(d))
}

// showPanel makes exactly one of the two panels visible.
func (a *App) showPanel() {
	panel := a.textPanel
	if a.selected.Kind == catalog.KindImage {
		panel = a.imagePanel
	}
	a.panelSlot.Objects = []fyne.CanvasObject{panel}
	a.panelSlot.Refresh()
}

func (a *App) onGenerate() {
	prompt := strings.TrimSpace(a.prompt.Text)
	if prompt == "" {
		dialog.ShowInformation("Missing", "Please enter a prompt.", a.win)
		return
	}
	if a.selected.Kind != catalog.KindText {
		dialog.ShowInformation("Wrong model", "Switch to GPT-2 in the model selector to use text generation.", a.win)
		return
	}
	if a.txtAdapter == nil {
		ta := adapter.NewTextAdapter(a.factory, a.selected.ModelID, a.device, a.log)
		if _, err := ta.Load(context.Background()); err != nil {
			dialog.ShowError(err, a.win)
			return
		}
		a.txtAdapter = ta
	}
	recs, err := a.txtAdapter.Run(context.Background(), prompt, adapter.WithMaxNewTokens(80))
	if err != nil {
		dialog.ShowError(err, a.win)
		return
	}
	a.setOutput(a.output, pipeline.DisplayText(recs), true)
	a.status.SetText("Generated with " + a.selected.ModelID)
}

func (a *App) onCaption() {
	if a.imgPath == "" {
		dialog.ShowInformation("Missing", "Please select an image first.", a.win)
		return
	}
	if a.selected.Kind != catalog.KindImage {
		dialog.ShowInformation("Wrong model", "Switch to ViT-GPT2 in the model selector to caption images.", a.win)
		return
	}
	if a.capAdapter == nil {
		ca := adapter.NewCaptionAdapter(a.factory, a.selected.ModelID, a.device, a.log)
		if _, err := ca.Load(context.Background()); err != nil {
			dialog.ShowError(err, a.win)
			return
		}
		a.capAdapter = ca
	}
	recs, err := a.capAdapter.Run(context.Background(), a.imgPath, adapter.WithCaptionMaxNewTokens(30))
	if err != nil {
		dialog.ShowError(err, a.win)
		return
	}
	a.setOutput(a.captionOut, pipeline.DisplayText(recs), true)
}

func (a *App) onBrowse() {
	d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, a.win)
			return
		}
		if rc == nil {
			return // canceled
		}
		path := rc.URI().Path()
		_ = rc.Close()
		a.selectImage(path)
	}, a.win)
	d.SetFilter(storage.NewExtensionFileFilter(imageExtensions))
	d.Show()
}

// selectImage records the chosen path and renders a preview. A preview
// failure is reported but does not clear the recorded path: the image may
// still caption fine even if it cannot be displayed.
func (a *App) selectImage(path string) {
	a.imgPath = path
	a.pathLabel.SetText(path)
	img, err := preview.Thumbnail(path, preview.MaxDim)
	if err != nil {
		dialog.ShowError(err, a.win)
		return
	}
	a.thumb.Image = img
	a.thumb.Refresh()
}

func (a *App) onClearText() {
	// Prompt stays editable after clearing; output stays read-only.
	a.setOutput(a.prompt, "", false)
	a.setOutput(a.output, "", true)
	a.status.SetText("Cleared")
}

func (a *App) onClearImage() {
	a.imgPath = ""
	a.pathLabel.SetText(noImageText)
	a.thumb.Image = nil
	a.thumb.Refresh()
	a.setOutput(a.captionOut, "", true)
}

// setOutput writes content into an entry. Disabled entries must be enabled
// for the write and re-disabled after, so outputs stay read-only.
func (a *App) setOutput(e *widget.Entry, content string, disable bool) {
	e.Enable()
	e.SetText(content)
	if disable {
		e.Disable()
	}
}
