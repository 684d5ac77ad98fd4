package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"modelgate/internal/common/fsutil"
	"modelgate/internal/config"
)

// DefaultPortStart is the first worker port assigned by LoadDir when the
// caller passes 0.
const DefaultPortStart = 9001

// LoadDir scans a directory for *.gguf files and builds ModelSpecs from them.
// The name is the filename without its extension; ports are assigned
// sequentially from portStart in filename order (os.ReadDir sorts entries).
func LoadDir(dir string, portStart int) ([]config.ModelSpec, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	if portStart <= 0 {
		portStart = DefaultPortStart
	}
	var specs []config.ModelSpec
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if !strings.EqualFold(ext, ".gguf") {
			continue
		}
		specs = append(specs, config.ModelSpec{
			Name: strings.TrimSuffix(name, ext),
			Path: filepath.Join(abs, name),
			Port: portStart + len(specs),
		})
	}
	return specs, nil
}

// Resolve returns cfg.Models, or the scan of cfg.ModelsDir when no models
// are listed explicitly.
func Resolve(cfg config.Config) ([]config.ModelSpec, error) {
	if len(cfg.Models) > 0 || cfg.ModelsDir == "" {
		return cfg.Models, nil
	}
	return LoadDir(cfg.ModelsDir, cfg.PortStart)
}
