package httpapi

import "testing"

func TestSetMaxBodyBytes_DefaultWhenNonPositive(t *testing.T) {
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB, got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(0)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB on zero, got %d", maxBodyBytes)
	}
}

func TestSetMaxBodyBytes_PositiveSetsValue(t *testing.T) {
	defer SetMaxBodyBytes(0)
	SetMaxBodyBytes(1234)
	if maxBodyBytes != 1234 {
		t.Fatalf("expected 1234, got %d", maxBodyBytes)
	}
}

func TestCORSDefaults_FillEmptyLists(t *testing.T) {
	SetCORSOptions(true, nil, nil, []string{"Authorization"})
	defer SetCORSOptions(false, nil, nil, nil)
	o, m, h := corsDefaults()
	if len(o) != 1 || o[0] != "*" {
		t.Fatalf("origins=%v", o)
	}
	if len(m) != 3 {
		t.Fatalf("methods=%v", m)
	}
	if len(h) != 1 || h[0] != "Authorization" {
		t.Fatalf("headers=%v", h)
	}
}
