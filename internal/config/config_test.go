package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Snapshot.Backend != "redis" {
		t.Errorf("snapshot backend = %q", cfg.Snapshot.Backend)
	}
	if cfg.Gemini.AnalysisModel != "gemini-3-pro-preview" || cfg.Gemini.ReportModel != "gemini-3-flash-preview" {
		t.Errorf("gemini models = %q / %q", cfg.Gemini.AnalysisModel, cfg.Gemini.ReportModel)
	}
}

func TestLogFormatFollowsEnvironment(t *testing.T) {
	t.Setenv("ADFLOW_ENV", "development")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Format != "console" {
		t.Errorf("development format = %q, want console", cfg.Log.Format)
	}

	t.Setenv("ADFLOW_ENV", "production")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("production format = %q, want json", cfg.Log.Format)
	}

	t.Setenv("ADFLOW_LOG_FORMAT", "console")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Format != "console" {
		t.Errorf("explicit format = %q, want console", cfg.Log.Format)
	}
}

func TestValidateRejectsAuthWithoutKey(t *testing.T) {
	t.Setenv("ADFLOW_AUTH_ENABLED", "true")
	t.Setenv("ADFLOW_API_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error when auth is enabled without a key")
	}
}

func TestValidateRejectsUnknownSnapshotBackend(t *testing.T) {
	t.Setenv("ADFLOW_SNAPSHOT_BACKEND", "etcd")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for unknown backend")
	}
}
