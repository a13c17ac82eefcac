package display

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"tinygo.org/x/drivers"
)

var _ drivers.Displayer = (*Framebuffer)(nil)

// Framebuffer is an in-memory monochrome-style display.
// Drawing happens in a back buffer; Display copies it to the front buffer and
// notifies the registered callbacks.
type Framebuffer struct {
	mu    sync.RWMutex
	back  *image.RGBA
	front *image.RGBA

	cbMu      sync.RWMutex
	callbacks []func(img image.Image)
}

// NewFramebuffer creates a w x h framebuffer.
func NewFramebuffer(w, h int16) *Framebuffer {
	rect := image.Rect(0, 0, int(w), int(h))
	fb := &Framebuffer{
		back:  image.NewRGBA(rect),
		front: image.NewRGBA(rect),
	}
	fb.ClearBuffer()
	fb.front = cloneRGBA(fb.back)
	return fb
}

// Size returns the display size in pixels.
func (fb *Framebuffer) Size() (x, y int16) {
	b := fb.back.Bounds()
	return int16(b.Dx()), int16(b.Dy())
}

// SetPixel sets a pixel in the back buffer. Out of range pixels are ignored.
func (fb *Framebuffer) SetPixel(x, y int16, c color.RGBA) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	// Alpha 0 is "off" on monochrome panels; store it opaque.
	c.A = 255
	fb.back.SetRGBA(int(x), int(y), c)
}

// ClearBuffer fills the back buffer with black.
func (fb *Framebuffer) ClearBuffer() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	draw.Draw(fb.back, fb.back.Bounds(), image.NewUniform(color.RGBA{0, 0, 0, 255}), image.Point{}, draw.Src)
}

// Display publishes the back buffer.
func (fb *Framebuffer) Display() error {
	fb.mu.Lock()
	fb.front = cloneRGBA(fb.back)
	img := fb.front
	fb.mu.Unlock()

	fb.cbMu.RLock()
	callbacks := fb.callbacks
	fb.cbMu.RUnlock()

	for _, cb := range callbacks {
		cb(img)
	}
	return nil
}

// Image returns the last displayed frame. The returned image must not be modified.
func (fb *Framebuffer) Image() image.Image {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	return fb.front
}

// Lit reports whether the pixel at (x, y) of the last displayed frame is on.
func (fb *Framebuffer) Lit(x, y int) bool {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	c := fb.front.RGBAAt(x, y)
	return c.R|c.G|c.B != 0
}

// OnDisplay registers a callback that receives every displayed frame.
// Callbacks run on the goroutine calling Display and must not block.
func (fb *Framebuffer) OnDisplay(cb func(img image.Image)) {
	fb.cbMu.Lock()
	defer fb.cbMu.Unlock()
	fb.callbacks = append(fb.callbacks, cb)
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
