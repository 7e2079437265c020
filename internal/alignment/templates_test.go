package alignment

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/anime-shed/idcard-inspector-go/pkg/models"
)

type countingEngine struct {
	calls atomic.Int32
}

func (c *countingEngine) Detect(img image.Image) (Features, error) {
	c.calls.Add(1)
	return Features{Keypoints: []Keypoint{{1, 1}}, Descriptors: [][]float32{{1}}}, nil
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func TestTemplateStore_LazyLoadAndInvalidate(t *testing.T) {
	front := t.TempDir()
	writePNG(t, filepath.Join(front, "b_front.png"), 40, 30)
	writePNG(t, filepath.Join(front, "a_front.PNG"), 50, 20)
	if err := os.WriteFile(filepath.Join(front, "notes.txt"), []byte("ignore"), 0o644); err != nil {
		t.Fatal(err)
	}

	engine := &countingEngine{}
	store := NewTemplateStore(engine, front, t.TempDir())

	if engine.calls.Load() != 0 {
		t.Fatal("Expected no loading before first use")
	}

	templates, err := store.Templates(models.SideFront)
	if err != nil {
		t.Fatalf("Expected templates, got %v", err)
	}
	if len(templates) != 2 {
		t.Fatalf("Expected 2 templates, got %d", len(templates))
	}
	if templates[0].Name != "a_front.PNG" || templates[0].Width != 50 || templates[0].Height != 20 {
		t.Errorf("Unexpected first template %+v", templates[0])
	}
	if templates[1].Side != models.SideFront {
		t.Errorf("Expected front side, got %s", templates[1].Side)
	}

	if _, err := store.Templates(models.SideFront); err != nil {
		t.Fatal(err)
	}
	if engine.calls.Load() != 2 {
		t.Errorf("Expected cached templates, engine ran %d times", engine.calls.Load())
	}

	store.Invalidate()
	if _, err := store.Templates(models.SideFront); err != nil {
		t.Fatal(err)
	}
	if engine.calls.Load() != 4 {
		t.Errorf("Expected reload after invalidate, engine ran %d times", engine.calls.Load())
	}
}

func TestTemplateStore_Errors(t *testing.T) {
	store := NewTemplateStore(&countingEngine{}, filepath.Join(t.TempDir(), "missing"), t.TempDir())

	if _, err := store.Templates(models.SideFront); err == nil {
		t.Error("Expected error for missing directory")
	}
	if _, err := store.Templates(models.SideBack); err == nil {
		t.Error("Expected error for empty directory")
	}
	if _, err := store.Templates(models.DocumentSide("side")); err == nil {
		t.Error("Expected error for unknown side")
	}
}
