package alignment

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/idcard-inspector-go/internal/logger"
	"github.com/anime-shed/idcard-inspector-go/pkg/models"
)

// Template is a reference photograph of one card side with its features.
type Template struct {
	Name     string
	Side     models.DocumentSide
	Width    int
	Height   int
	Features Features
}

// NewTemplate computes the features of a reference image.
func NewTemplate(name string, side models.DocumentSide, img image.Image, engine FeatureEngine) (*Template, error) {
	features, err := engine.Detect(img)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	b := img.Bounds()
	return &Template{
		Name:     name,
		Side:     side,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Features: features,
	}, nil
}

// TemplateStore loads reference templates per side on first use and keeps
// them until Invalidate is called. Changes on disk are not noticed before
// that.
type TemplateStore struct {
	engine FeatureEngine
	dirs   map[models.DocumentSide]string

	mu    sync.Mutex
	cache map[models.DocumentSide][]*Template
}

// NewTemplateStore creates a store reading front and back templates from
// the given directories.
func NewTemplateStore(engine FeatureEngine, frontDir, backDir string) *TemplateStore {
	return &TemplateStore{
		engine: engine,
		dirs: map[models.DocumentSide]string{
			models.SideFront: frontDir,
			models.SideBack:  backDir,
		},
		cache: make(map[models.DocumentSide][]*Template),
	}
}

// Templates returns the templates for side, loading them if needed.
func (s *TemplateStore) Templates(side models.DocumentSide) ([]*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.cache[side]; ok {
		return cached, nil
	}
	dir, ok := s.dirs[side]
	if !ok {
		return nil, fmt.Errorf("unknown document side %q", side)
	}

	templates, err := s.load(side, dir)
	if err != nil {
		return nil, err
	}
	s.cache[side] = templates
	return templates, nil
}

// Invalidate drops every cached template.
func (s *TemplateStore) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[models.DocumentSide][]*Template)
	s.mu.Unlock()
	logger.Info("Template cache invalidated")
}

func (s *TemplateStore) load(side models.DocumentSide, dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read template dir %s: %w", dir, err)
	}

	var templates []*Template
	for _, entry := range entries {
		if entry.IsDir() || !isTemplateFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		img, err := decodeFile(path)
		if err != nil {
			logger.WithError(err).WithField("path", path).Warn("Skipping unreadable template")
			continue
		}
		tpl, err := NewTemplate(entry.Name(), side, img, s.engine)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}

	if len(templates) == 0 {
		return nil, fmt.Errorf("no %s templates found in %s", side, dir)
	}
	logger.WithFields(logrus.Fields{
		"side":  side,
		"dir":   dir,
		"count": len(templates),
	}).Info("Templates loaded")
	return templates, nil
}

func isTemplateFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}
