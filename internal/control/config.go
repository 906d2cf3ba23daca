package control

// Config holds the tunables for signal extraction.
type Config struct {
	// ScreenWidth and ScreenHeight are the logical screen size detector
	// coordinates are scaled to.
	ScreenWidth  float64
	ScreenHeight float64

	// Mirror flips detector x so the preview behaves like a mirror.
	Mirror bool

	// Smoothing is the EMA weight of each new camera position (0,1].
	// 1 disables smoothing.
	Smoothing float64

	// MouseSmoothing is the EMA weight of each new mouse position (0,1].
	MouseSmoothing float64

	// AnchorFollow is how quickly an unlatched camera pull origin trails
	// the hand (0,1].
	AnchorFollow float64

	// MinConfidence discards detections scoring below it.
	MinConfidence float64
}

// DefaultConfig returns defaults for a 1280x720 logical screen.
func DefaultConfig() Config {
	return Config{
		ScreenWidth:    1280,
		ScreenHeight:   720,
		Mirror:         true,
		Smoothing:      0.5,
		MouseSmoothing: 1,
		AnchorFollow:   0.1,
		MinConfidence:  0.5,
	}
}

// withDefaults replaces out-of-range values with defaults.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ScreenWidth <= 0 || c.ScreenHeight <= 0 {
		c.ScreenWidth, c.ScreenHeight = def.ScreenWidth, def.ScreenHeight
	}
	if c.Smoothing <= 0 || c.Smoothing > 1 {
		c.Smoothing = def.Smoothing
	}
	if c.MouseSmoothing <= 0 || c.MouseSmoothing > 1 {
		c.MouseSmoothing = def.MouseSmoothing
	}
	if c.AnchorFollow <= 0 || c.AnchorFollow > 1 {
		c.AnchorFollow = def.AnchorFollow
	}
	if c.MinConfidence < 0 {
		c.MinConfidence = 0
	}
	return c
}
