package registry

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"modelgate/internal/config"
)

func TestLoadDir_FiltersGGUFAndAssignsPorts(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"a.gguf",
		"b.GGUF", // case-insensitive
		"not-model.txt",
		"model.bin",
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte(""), 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
	}
	specs, err := LoadDir(dir, 9500)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 models, got %d", len(specs))
	}
	if specs[0].Name != "a" || specs[0].Port != 9500 || specs[1].Name != "b" || specs[1].Port != 9501 {
		t.Fatalf("unexpected specs: %+v", specs)
	}
	if !filepath.IsAbs(specs[0].Path) {
		t.Fatalf("path not absolute: %s", specs[0].Path)
	}
}

func TestLoadDir_DefaultPortStart(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "m.gguf"), []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	specs, err := LoadDir(dir, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(specs) != 1 || specs[0].Name != "m" || specs[0].Port != DefaultPortStart {
		t.Fatalf("unexpected: %+v", specs)
	}
}

func TestLoadDir_ExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir on this platform: %v", err)
	}
	hTmp, err := os.MkdirTemp(home, "modelgate-registry-*")
	if err != nil {
		t.Skipf("cannot create temp under home: %v", err)
	}
	defer os.RemoveAll(hTmp)
	if err := os.WriteFile(filepath.Join(hTmp, "x.gguf"), []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var tildePath string
	if runtime.GOOS == "windows" {
		tildePath = filepath.Join("~", filepath.Base(hTmp))
	} else {
		tildePath = "~/" + filepath.Base(hTmp)
	}
	specs, err := LoadDir(tildePath, 0)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(specs) != 1 || specs[0].Name != "x" {
		t.Fatalf("unexpected models: %+v", specs)
	}
}

func TestResolve(t *testing.T) {
	explicit := config.Config{Models: []config.ModelSpec{{Name: "e", Path: "/e", Port: 1}}, ModelsDir: "/ignored"}
	got, err := Resolve(explicit)
	if err != nil || len(got) != 1 || got[0].Name != "e" {
		t.Fatalf("explicit models should win: %+v %v", got, err)
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "s.gguf"), []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err = Resolve(config.Config{ModelsDir: dir, PortStart: 9700})
	if err != nil || len(got) != 1 || got[0].Port != 9700 {
		t.Fatalf("scan fallback failed: %+v %v", got, err)
	}
	if _, err := Resolve(config.Config{ModelsDir: filepath.Join(dir, "nope")}); err == nil {
		t.Fatalf("expected read dir error")
	}
}
