package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", `addr: 127.0.0.1:9999
relay_timeout_seconds: 30
models:
  - name: small
    path: /m/small.gguf
    port: 9001
  - name: big
    path: /m/big.gguf
    port: 9002
generation:
  temperature: 0.2
worker:
  backend: echo
`)
	cfg, err := Load(p)
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.Addr != "127.0.0.1:9999" || cfg.RelayTimeoutSeconds != 30 || cfg.Worker.Backend != "echo" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.Models) != 2 || cfg.Models[0].Name != "small" || cfg.Models[1].Port != 9002 {
		t.Fatalf("models not in file order: %+v", cfg.Models)
	}
	if cfg.Generation.EffectiveTemperature() != 0.2 || cfg.Generation.TopP != DefaultTopP {
		t.Fatalf("generation defaults not merged: %+v", cfg.Generation)
	}
	if err := cfg.Validate(); err != nil { t.Fatalf("validate: %v", err) }
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":"127.0.0.1:7070","models":[{"name":"a","path":"/a.gguf","port":9100}],"health_timeout_seconds":1}`)
	cfg, err := Load(p)
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.Addr != "127.0.0.1:7070" || len(cfg.Models) != 1 || cfg.HealthTimeoutSeconds != 1 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.StartupTimeoutSeconds != DefaultStartupTimeoutSeconds {
		t.Fatalf("startup timeout default not applied: %d", cfg.StartupTimeoutSeconds)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\"127.0.0.1:8081\"\nprobe_interval_seconds=1\n\n[[models]]\nname=\"x\"\npath=\"/x.gguf\"\nport=9200\n")
	cfg, err := Load(p)
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.Addr != "127.0.0.1:8081" || cfg.ProbeIntervalSeconds != 1 || len(cfg.Models) != 1 || cfg.Models[0].Port != 9200 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil { t.Fatalf("expected error on empty path") }
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil { t.Fatalf("expected unsupported extension error") }
}

func TestLoadYAML_ZeroTemperatureIsKept(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", `models:
  - name: small
    path: /m/small.gguf
    port: 9001
generation:
  temperature: 0
  n_gpu_layers: -1
`)
	cfg, err := Load(p)
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.Generation.Temperature == nil || *cfg.Generation.Temperature != 0 {
		t.Fatalf("temperature 0 replaced: %v", cfg.Generation.Temperature)
	}
	if cfg.Generation.GPULayers != -1 {
		t.Fatalf("n_gpu_layers=%d want -1", cfg.Generation.GPULayers)
	}
}

func TestApplyDefaults_Temperature(t *testing.T) {
	zero := 0.0
	c := Config{Generation: GenerationDefaults{Temperature: &zero}}
	c.ApplyDefaults()
	if got := c.Generation.EffectiveTemperature(); got != 0 {
		t.Fatalf("explicit 0 -> %v", got)
	}
	var unset Config
	unset.ApplyDefaults()
	if got := unset.Generation.EffectiveTemperature(); got != DefaultTemperature {
		t.Fatalf("unset -> %v want %v", got, DefaultTemperature)
	}
	if (GenerationDefaults{}).EffectiveTemperature() != DefaultTemperature {
		t.Fatal("nil temperature must read as the default")
	}
}
