package trace

import "testing"

func TestLoadFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"OTEL_ENABLED", "OTEL_SERVICE_NAME", "OTEL_SERVICE_VERSION",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_HEADERS",
		"OTEL_EXPORTER_OTLP_INSECURE", "OTEL_TRACES_SAMPLER_ARG",
	} {
		t.Setenv(k, "")
	}

	cfg := LoadFromEnv()
	if cfg.Enabled {
		t.Error("Enabled should default to false")
	}
	if cfg.ServiceName != "graphine" {
		t.Errorf("ServiceName default = %q, want graphine", cfg.ServiceName)
	}
	if cfg.SampleRatio != 1.0 {
		t.Errorf("SampleRatio default = %v, want 1.0 (always sample)", cfg.SampleRatio)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SERVICE_NAME", "graphine-worker-3")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "Authorization=Bearer tok,x-team=graph")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")

	cfg := LoadFromEnv()
	if !cfg.Enabled {
		t.Error("expected Enabled=true")
	}
	if cfg.ServiceName != "graphine-worker-3" {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}
	if cfg.Endpoint != "collector:4317" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if !cfg.Insecure {
		t.Error("expected Insecure=true")
	}
	if cfg.Headers["Authorization"] != "Bearer tok" || cfg.Headers["x-team"] != "graph" {
		t.Errorf("Headers = %v", cfg.Headers)
	}
	if cfg.SampleRatio != 0.25 {
		t.Errorf("SampleRatio = %v, want 0.25", cfg.SampleRatio)
	}
}

func TestParseRatio_ClampsOutOfRange(t *testing.T) {
	cases := map[string]float64{
		"":        1.0,
		"nan-ish": 1.0,
		"-1":      0,
		"2":       1.0,
		"0.5":     0.5,
	}
	for in, want := range cases {
		if got := parseRatio(in); got != want {
			t.Errorf("parseRatio(%q) = %v, want %v", in, got, want)
		}
	}
}
