// Package display renders the vivarium status screen on a pixel display.
package display

import (
	"context"
	"fmt"
	"image/color"
	"strconv"
	"time"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

// Title is the header line of the status screen.
const Title = "Smart Vivarium"

var (
	white = color.RGBA{255, 255, 255, 255}
	black = color.RGBA{0, 0, 0, 0}
)

// Baselines of the three text lines (128x64 layout).
const (
	headerY      int16 = 12
	dieTempY     int16 = 30
	referenceY   int16 = 41
	degreeSize   int16 = 4
	degreeRaiseY int16 = 6
)

// Readings is one frame of the status screen.
type Readings struct {
	DieC      float32 // Die temperature, already truncated for display
	Reference float32 // Rescaled calibration reading, already truncated
}

// Lines returns the text lines shown for r, header excluded.
func (r Readings) Lines() []string {
	return []string{
		fmt.Sprintf("Temp Die: %s  C", formatValue(r.DieC)),
		fmt.Sprintf("Ref Temp: %s  C", formatValue(r.Reference)),
	}
}

// formatValue prints the shortest representation, so 1.0 is "1" and 27.10 is "27.1".
func formatValue(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}

// clearer is implemented by displays with an off-screen buffer (ssd1306, Framebuffer).
type clearer interface {
	ClearBuffer()
}

// Screen draws the status layout on a display.
type Screen struct {
	d          drivers.Displayer
	font       tinyfont.Fonter
	startDelay time.Duration
	init       func() error
	ready      bool
}

// Option configures a Screen.
type Option func(*Screen)

// WithStartDelay waits d before initializing the display. Some OLED panels
// need it after a cold boot.
func WithStartDelay(d time.Duration) Option {
	return func(s *Screen) {
		s.startDelay = d
	}
}

// WithInit sets the display controller initialization.
func WithInit(fn func() error) Option {
	return func(s *Screen) {
		s.init = fn
	}
}

// NewScreen creates a status screen on d.
func NewScreen(d drivers.Displayer, opts ...Option) *Screen {
	s := &Screen{
		d:    d,
		font: &proggy.TinySZ8pt7b,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init waits the start delay and initializes the display controller.
func (s *Screen) Init(ctx context.Context) error {
	if s.startDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.startDelay):
		}
	}

	if s.init != nil {
		if err := s.init(); err != nil {
			return fmt.Errorf("display init failed: %w", err)
		}
	}
	s.ready = true
	return nil
}

// Show draws r and flushes the display.
func (s *Screen) Show(r Readings) error {
	if !s.ready {
		return fmt.Errorf("display not initialized")
	}

	s.clear()
	s.writeCentered(Title, headerY, false)
	for i, line := range r.Lines() {
		y := dieTempY
		if i == 1 {
			y = referenceY
		}
		s.writeCentered(line, y, true)
	}

	return s.d.Display()
}

func (s *Screen) clear() {
	if c, ok := s.d.(clearer); ok {
		c.ClearBuffer()
		return
	}
	w, h := s.d.Size()
	for y := int16(0); y < h; y++ {
		for x := int16(0); x < w; x++ {
			s.d.SetPixel(x, y, black)
		}
	}
}

// writeCentered writes line horizontally centered with its baseline at y.
// With degree set, a degree mark is drawn in the gap before the trailing "C".
func (s *Screen) writeCentered(line string, y int16, degree bool) {
	w, _ := s.d.Size()
	_, outbox := tinyfont.LineWidth(s.font, line)
	x := (w - int16(outbox)) / 2
	if x < 0 {
		x = 0
	}
	tinyfont.WriteLine(s.d, s.font, x, y, line, white)

	if !degree || len(line) < 3 {
		return
	}
	// Everything up to and including the first of the two spaces before "C".
	_, prefix := tinyfont.LineWidth(s.font, line[:len(line)-2])
	s.degree(x+int16(prefix), y-degreeRaiseY)
}

// degree draws a small ring with its top-left corner at (x, y).
func (s *Screen) degree(x, y int16) {
	last := degreeSize - 1
	for i := int16(1); i < last; i++ {
		s.d.SetPixel(x+i, y, white)
		s.d.SetPixel(x+i, y+last, white)
		s.d.SetPixel(x, y+i, white)
		s.d.SetPixel(x+last, y+i, white)
	}
}
