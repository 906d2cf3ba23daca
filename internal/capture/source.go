package capture

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
)

// SourceKind names where frames come from.
type SourceKind string

const (
	SourceAuto  SourceKind = "auto"  // first working USB device, then the pan-tilt camera
	SourceUSB   SourceKind = "usb"   // local device index
	SourceRTSP  SourceKind = "rtsp"  // network stream URL
	SourceMooer SourceKind = "mooer" // pan-tilt network camera over RTSP
	SourceFile  SourceKind = "file"  // recorded video, for demos and tests
)

// Default capture settings.
const (
	DefaultFPS        = 30
	DefaultWidth      = 640
	DefaultHeight     = 480
	DefaultAutoProbes = 4
)

// ErrInvalidSource is returned for a source that cannot be opened as described.
var ErrInvalidSource = errors.New("invalid camera source")

// Source describes a camera to open.
type Source struct {
	Kind   SourceKind `json:"kind" yaml:"kind"`
	Device int        `json:"device,omitempty" yaml:"device"`
	URL    string     `json:"url,omitempty" yaml:"url"`
	Width  int        `json:"width,omitempty" yaml:"width"`
	Height int        `json:"height,omitempty" yaml:"height"`
	FPS    int        `json:"fps,omitempty" yaml:"fps"`
}

// Validate checks that the source carries what its kind needs.
func (s Source) Validate() error {
	switch s.Kind {
	case SourceAuto:
		return nil
	case SourceUSB:
		if s.Device < 0 {
			return fmt.Errorf("%w: device %d", ErrInvalidSource, s.Device)
		}
	case SourceRTSP, SourceMooer:
		u, err := url.Parse(s.URL)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSource, err)
		}
		if u.Scheme != "rtsp" && u.Scheme != "rtsps" {
			return fmt.Errorf("%w: %s url must use rtsp", ErrInvalidSource, s.Kind)
		}
		if u.Host == "" {
			return fmt.Errorf("%w: %s url has no host", ErrInvalidSource, s.Kind)
		}
	case SourceFile:
		if s.URL == "" {
			return fmt.Errorf("%w: file source needs a path", ErrInvalidSource)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSource, s.Kind)
	}
	if s.Width < 0 || s.Height < 0 || s.FPS < 0 {
		return fmt.Errorf("%w: negative size or fps", ErrInvalidSource)
	}
	return nil
}

// withDefaults fills unset capture settings.
func (s Source) withDefaults() Source {
	if s.Kind == "" {
		s.Kind = SourceAuto
	}
	if s.Width == 0 {
		s.Width = DefaultWidth
	}
	if s.Height == 0 {
		s.Height = DefaultHeight
	}
	if s.FPS == 0 {
		s.FPS = DefaultFPS
	}
	return s
}

// String describes the source with any stream password hidden.
func (s Source) String() string {
	switch s.Kind {
	case SourceUSB:
		return fmt.Sprintf("usb:%d", s.Device)
	case SourceRTSP, SourceMooer:
		if u, err := url.Parse(s.URL); err == nil {
			return fmt.Sprintf("%s:%s", s.Kind, u.Redacted())
		}
		return string(s.Kind)
	case SourceFile:
		return "file:" + s.URL
	default:
		return string(s.Kind)
	}
}

// ParseSource reads a source from a short form: a device index, an rtsp://
// URL, "mooer", "auto", or a video file path.
func ParseSource(v string, mooerURL string) (Source, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "" || v == string(SourceAuto):
		return Source{Kind: SourceAuto, URL: mooerURL}, nil
	case v == string(SourceMooer):
		return Source{Kind: SourceMooer, URL: mooerURL}, nil
	case strings.HasPrefix(v, "rtsp://") || strings.HasPrefix(v, "rtsps://"):
		return Source{Kind: SourceRTSP, URL: v}, nil
	}

	if id, err := strconv.Atoi(v); err == nil {
		if id < 0 {
			return Source{}, fmt.Errorf("%w: device %d", ErrInvalidSource, id)
		}
		return Source{Kind: SourceUSB, Device: id}, nil
	}

	switch strings.ToLower(filepath.Ext(v)) {
	case ".mp4", ".avi", ".mov", ".mkv", ".webm":
		return Source{Kind: SourceFile, URL: v}, nil
	}
	return Source{}, fmt.Errorf("%w: %q", ErrInvalidSource, v)
}

// MooerURL builds the main-stream RTSP URL of a pan-tilt network camera.
func MooerURL(user, pass, host string) string {
	u := url.URL{
		Scheme: "rtsp",
		User:   url.UserPassword(user, pass),
		Host:   host + ":554",
		Path:   "/h264/ch1/main/av_stream",
	}
	return u.String()
}
