package capture

import (
	"fmt"
	"image"
	stdcolor "image/color"
	"time"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"golang.org/x/image/font/basicfont"

	"github.com/lanikai/alohacam/internal/color"
	"github.com/lanikai/alohacam/internal/media"
)

// SMPTE-style bars.
var bars = []stdcolor.RGBA{
	{192, 192, 192, 255},
	{192, 192, 0, 255},
	{0, 192, 192, 255},
	{0, 192, 0, 255},
	{192, 0, 192, 255},
	{192, 0, 0, 255},
	{0, 0, 192, 255},
}

// TestPatternConfig configures the synthetic camera.
type TestPatternConfig struct {
	Width     int
	Height    int
	FrameRate int
	Label     string
}

type testPattern struct {
	cfg    TestPatternConfig
	dc     *gg.Context
	ticker *time.Ticker
	n      int
}

// OpenTestPattern returns an OpenFunc for a camera that renders color bars,
// a moving marker, a frame counter, and the wall clock at the configured
// frame rate.
func OpenTestPattern(cfg TestPatternConfig) OpenFunc {
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 10
	}
	return func() (Camera, error) {
		if cfg.Width <= 0 || cfg.Height <= 0 {
			return nil, errors.Errorf("test pattern: invalid size %dx%d", cfg.Width, cfg.Height)
		}
		dc := gg.NewContext(cfg.Width, cfg.Height)
		dc.SetFontFace(basicfont.Face7x13)
		return &testPattern{
			cfg:    cfg,
			dc:     dc,
			ticker: time.NewTicker(time.Second / time.Duration(cfg.FrameRate)),
		}, nil
	}
}

func (p *testPattern) ReadFrame() (*media.RawFrame, error) {
	now := <-p.ticker.C
	p.n++
	p.render(now)

	f := media.NewRawFrame(p.cfg.Width, p.cfg.Height)
	color.ImageToFrame(f, p.dc.Image())
	f.CapturedAt = time.Now()
	return f, nil
}

func (p *testPattern) render(now time.Time) {
	dc := p.dc
	w, h := float64(p.cfg.Width), float64(p.cfg.Height)

	bw := w / float64(len(bars))
	for i, c := range bars {
		dc.SetColor(c)
		dc.DrawRectangle(float64(i)*bw, 0, bw+1, h*0.75)
		dc.Fill()
	}

	dc.SetColor(image.Black)
	dc.DrawRectangle(0, h*0.75, w, h*0.25)
	dc.Fill()

	// Marker sweeping left to right once per second of frames.
	x := w * float64(p.n%p.cfg.FrameRate) / float64(p.cfg.FrameRate)
	dc.SetColor(image.White)
	dc.DrawCircle(x+h*0.04, h*0.82, h*0.04)
	dc.Fill()

	text := fmt.Sprintf("%s  #%d  %s", p.cfg.Label, p.n, now.Format("15:04:05.000"))
	dc.DrawStringAnchored(text, w/2, h*0.93, 0.5, 0.5)
}

func (p *testPattern) Close() error {
	p.ticker.Stop()
	return nil
}
