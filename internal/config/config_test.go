package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"SCRUMBOARD_ADDR", "SCRUMBOARD_DB_PATH", "SCRUMBOARD_JWT_SECRET",
		"SCRUMBOARD_RESOLVE_TIMEOUT", "SCRUMBOARD_SIGNIN_PATH", "SCRUMBOARD_UNAUTHORIZED_PATH",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.DBPath != "data/scrumboard.db" || cfg.ResolveTimeout != 5*time.Second {
		t.Fatalf("defaults = %+v", cfg)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("missing JWT secret should fail validation")
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("SCRUMBOARD_ADDR", ":9090")
	t.Setenv("SCRUMBOARD_JWT_SECRET", "k")
	t.Setenv("SCRUMBOARD_RESOLVE_TIMEOUT", "750ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.ResolveTimeout != 750*time.Millisecond {
		t.Fatalf("cfg = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoad_BadTimeout(t *testing.T) {
	t.Setenv("SCRUMBOARD_RESOLVE_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}
