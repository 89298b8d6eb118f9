package pipeline

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
)

// Observer receives the raster produced by every stage. Implementations must
// not modify img.
type Observer interface {
	Observe(stage Stage, title string, img image.Image)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(stage Stage, title string, img image.Image)

// Observe implements Observer.
func (f ObserverFunc) Observe(stage Stage, title string, img image.Image) { f(stage, title, img) }

// NopObserver discards everything.
type NopObserver struct{}

// Observe implements Observer.
func (NopObserver) Observe(Stage, string, image.Image) {}

// MultiObserver fans out to several observers in order.
type MultiObserver []Observer

// Observe implements Observer.
func (m MultiObserver) Observe(stage Stage, title string, img image.Image) {
	for _, o := range m {
		if o != nil {
			o.Observe(stage, title, img)
		}
	}
}

// LogObserver traces stage completion through slog.
type LogObserver struct {
	Logger *slog.Logger
}

// Observe implements Observer.
func (l LogObserver) Observe(stage Stage, title string, img image.Image) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"stage", stage.String(), "title", title}
	if img != nil {
		b := img.Bounds()
		attrs = append(attrs, "width", b.Dx(), "height", b.Dy())
	}
	logger.Debug("Stage completed", attrs...)
}

// DirObserver writes every stage raster as a PNG into Dir. Files are named
// <prefix>_<nn>_<stage>.png so a directory listing follows execution order.
type DirObserver struct {
	Dir    string
	Prefix string

	once sync.Once
	err  error
}

// NewDirObserver creates a sink writing into dir with the given file prefix.
func NewDirObserver(dir, prefix string) *DirObserver {
	if prefix == "" {
		prefix = "stage"
	}
	return &DirObserver{Dir: dir, Prefix: prefix}
}

// Observe implements Observer.
func (d *DirObserver) Observe(stage Stage, _ string, img image.Image) {
	if img == nil {
		return
	}
	d.once.Do(func() { d.err = os.MkdirAll(d.Dir, 0o750) })
	if d.err != nil {
		slog.Warn("Stage directory unavailable", "dir", d.Dir, "error", d.err)
		return
	}
	path := d.Path(stage)
	if err := imaging.Save(img, path); err != nil {
		slog.Warn("Failed to write stage image", "path", path, "error", err)
	}
}

// Path returns the file a stage is written to.
func (d *DirObserver) Path(stage Stage) string {
	return filepath.Join(d.Dir, fmt.Sprintf("%s_%02d_%s.png", d.Prefix, int(stage), stage))
}
