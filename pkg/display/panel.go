//go:build !tinygo

package display

import (
	"image"
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

var (
	statusOK    = color.RGBA{R: 120, G: 200, B: 120, A: 255}
	statusAlert = color.RGBA{R: 230, G: 70, B: 70, A: 255}
)

// PanelWidget is a Fyne widget that mirrors a Framebuffer, scaled up with
// square pixels, with a status line underneath.
type PanelWidget struct {
	widget.BaseWidget

	// Data (protected by mu)
	mu     sync.RWMutex
	frame  image.Image
	status string
	alert  bool
}

// NewPanel creates a panel showing every frame displayed on fb.
func NewPanel(fb *Framebuffer) *PanelWidget {
	p := &PanelWidget{
		frame:  fb.Image(),
		status: "waiting for data",
	}
	p.ExtendBaseWidget(p)

	fb.OnDisplay(func(img image.Image) {
		p.mu.Lock()
		p.frame = img
		p.mu.Unlock()
		// Widgets may only be refreshed on the Fyne main thread.
		fyne.Do(p.Refresh)
	})
	return p
}

// SetStatus updates the status line. Safe to call from any goroutine.
func (p *PanelWidget) SetStatus(text string, alert bool) {
	p.mu.Lock()
	p.status = text
	p.alert = alert
	p.mu.Unlock()
	fyne.Do(p.Refresh)
}

// Status returns the current status line.
func (p *PanelWidget) Status() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status, p.alert
}

// CreateRenderer creates the widget renderer.
func (p *PanelWidget) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})

	p.mu.RLock()
	img := canvas.NewImageFromImage(p.frame)
	p.mu.RUnlock()
	img.FillMode = canvas.ImageFillContain
	img.ScaleMode = canvas.ImageScalePixels

	status := canvas.NewText("", statusOK)
	status.TextSize = 14

	r := &panelRenderer{
		panel:   p,
		bg:      bg,
		image:   img,
		status:  status,
		objects: []fyne.CanvasObject{bg, img, status},
	}
	r.Refresh()
	return r
}

// panelRenderer renders the panel widget.
type panelRenderer struct {
	panel *PanelWidget

	bg     *canvas.Rectangle
	image  *canvas.Image
	status *canvas.Text

	objects []fyne.CanvasObject
}

// MinSize is four times the OLED resolution plus the status line.
func (r *panelRenderer) MinSize() fyne.Size {
	return fyne.NewSize(512, 256+r.status.MinSize().Height)
}

func (r *panelRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)

	statusHeight := r.status.MinSize().Height
	r.image.Move(fyne.NewPos(0, 0))
	r.image.Resize(fyne.NewSize(size.Width, size.Height-statusHeight))

	r.status.Move(fyne.NewPos(4, size.Height-statusHeight))
	r.status.Resize(fyne.NewSize(size.Width-8, statusHeight))
}

func (r *panelRenderer) Refresh() {
	r.panel.mu.RLock()
	frame := r.panel.frame
	text := r.panel.status
	alert := r.panel.alert
	r.panel.mu.RUnlock()

	r.image.Image = frame
	r.image.Refresh()

	r.status.Text = text
	r.status.Color = statusOK
	if alert {
		r.status.Color = statusAlert
	}
	r.status.Refresh()
}

func (r *panelRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *panelRenderer) Destroy() {}
