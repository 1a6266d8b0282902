package v4l2

// Config describes the capture mode requested from a device. The driver may
// adjust width and height; the values it chose are reported by Device.Format.
type Config struct {
	Format    FourCC // Pixel format (e.g. MJPG)
	Width     int    // Video width in pixels
	Height    int    // Video height in pixels
	FrameRate int    // Frames per second, 0 for driver default

	// Number of kernel buffers to map. More buffers smooth over scheduling
	// jitter but raise latency.
	NumBuffers int

	HFlip bool // Flip video horizontally
	VFlip bool // Flip video vertically
}

func (c *Config) setDefaults() {
	if c.Width <= 0 {
		c.Width = 1280
	}
	if c.Height <= 0 {
		c.Height = 720
	}
	if c.Format == 0 {
		c.Format = PixelFormatMJPEG
	}
	if c.NumBuffers <= 0 {
		c.NumBuffers = 2
	}
}
