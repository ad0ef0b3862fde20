package instrumentation

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.ServiceName != "indiobot" {
		t.Errorf("expected service name 'indiobot', got %q", config.ServiceName)
	}
	if !config.Enabled {
		t.Error("expected instrumentation to be enabled by default")
	}
	if config.MetricsExporter != ExporterPrometheus {
		t.Errorf("expected prometheus metrics exporter, got %q", config.MetricsExporter)
	}
	if config.TracingExporter != ExporterNone {
		t.Errorf("expected tracing disabled by default, got %q", config.TracingExporter)
	}
	if config.TraceSamplingRate != 0.1 {
		t.Errorf("expected default sampling rate 0.1, got %f", config.TraceSamplingRate)
	}
	if !config.AuditLogging.Enabled {
		t.Error("expected audit logging enabled by default")
	}
	if config.AuditLogging.IncludeClientID {
		t.Error("expected raw client IDs excluded from audit logs by default")
	}
}

func TestDefaultConfigEnvOverrides(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "custom-service")
	t.Setenv("INSTRUMENTATION_ENABLED", "false")
	t.Setenv("METRICS_EXPORTER", "stdout")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.5")

	config := DefaultConfig()

	if config.ServiceName != "custom-service" {
		t.Errorf("expected service name override, got %q", config.ServiceName)
	}
	if config.Enabled {
		t.Error("expected instrumentation disabled via env")
	}
	if config.MetricsExporter != ExporterStdout {
		t.Errorf("expected stdout exporter, got %q", config.MetricsExporter)
	}
	if config.TraceSamplingRate != 0.5 {
		t.Errorf("expected sampling rate 0.5, got %f", config.TraceSamplingRate)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "valid default-ish config",
			config: Config{
				MetricsExporter: ExporterPrometheus,
				TracingExporter: ExporterNone,
			},
			wantErr: false,
		},
		{
			name: "sampling rate too high",
			config: Config{
				MetricsExporter:   ExporterPrometheus,
				TracingExporter:   ExporterNone,
				TraceSamplingRate: 1.5,
			},
			wantErr: true,
		},
		{
			name: "negative sampling rate",
			config: Config{
				MetricsExporter:   ExporterPrometheus,
				TracingExporter:   ExporterNone,
				TraceSamplingRate: -0.1,
			},
			wantErr: true,
		},
		{
			name: "invalid metrics exporter",
			config: Config{
				MetricsExporter: "graphite",
				TracingExporter: ExporterNone,
			},
			wantErr: true,
		},
		{
			name: "invalid tracing exporter",
			config: Config{
				MetricsExporter: ExporterPrometheus,
				TracingExporter: "jaeger",
			},
			wantErr: true,
		},
		{
			name: "otlp metrics without endpoint",
			config: Config{
				MetricsExporter: ExporterOTLP,
				TracingExporter: ExporterNone,
			},
			wantErr: true,
		},
		{
			name: "otlp tracing without endpoint",
			config: Config{
				MetricsExporter: ExporterPrometheus,
				TracingExporter: ExporterOTLP,
			},
			wantErr: true,
		},
		{
			name: "otlp with endpoint",
			config: Config{
				MetricsExporter: ExporterOTLP,
				TracingExporter: ExporterOTLP,
				OTLPEndpoint:    "localhost:4318",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
