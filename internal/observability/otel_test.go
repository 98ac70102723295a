package observability

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tbourn/alumni-portal/internal/config"
)

// keepGlobals restores the tracer provider, propagator and seams after t.
func keepGlobals(t *testing.T) {
	t.Helper()
	tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	exp, res := newOTLPExporterFn, newServiceResourceFn
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
		newOTLPExporterFn, newServiceResourceFn = exp, res
	})
}

func enabledConfig() config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    true,
		Endpoint:    "localhost:4317",
		ServiceName: "alumni-portal",
		SampleRatio: 1,
	}
}

func TestSetupOTel_DisabledInstallsNothing(t *testing.T) {
	keepGlobals(t)
	before := otel.GetTracerProvider()

	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{}, "dev")
	if err != nil || shutdown == nil {
		t.Fatalf("SetupOTel = (shutdown nil: %v), %v", shutdown == nil, err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatalf("disabled tracing replaced the provider")
	}
}

func TestSetupOTel_InstallsProviderAndPropagator(t *testing.T) {
	for _, insecure := range []bool{true, false} {
		keepGlobals(t)
		cfg := enabledConfig()
		cfg.Insecure = insecure

		// The exporter connects lazily, so no collector is needed.
		shutdown, err := SetupOTel(context.Background(), cfg, "v1.0.0")
		if err != nil {
			t.Fatalf("insecure=%v: %v", insecure, err)
		}
		if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
			t.Fatalf("insecure=%v: provider is %T", insecure, otel.GetTracerProvider())
		}
		fields := otel.GetTextMapPropagator().Fields()
		if len(fields) < 2 {
			t.Fatalf("expected tracecontext and baggage fields, got %v", fields)
		}

		_, span := otel.Tracer("realtime").Start(context.Background(), "realtime.Dispatch")
		span.End()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_ = shutdown(ctx)
	}
}

func TestSetupOTel_FailuresLeaveGlobalsAlone(t *testing.T) {
	boom := errors.New("boom")
	cases := map[string]func(){
		"exporter": func() {
			newOTLPExporterFn = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) { return nil, boom }
		},
		"resource": func() {
			newServiceResourceFn = func(context.Context, string, string, string) (*resource.Resource, error) { return nil, boom }
		},
	}
	for name, breakIt := range cases {
		t.Run(name, func(t *testing.T) {
			keepGlobals(t)
			tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()
			breakIt()

			_, err := SetupOTel(context.Background(), enabledConfig(), "v1")
			if !errors.Is(err, boom) {
				t.Fatalf("err = %v; want wrapped boom", err)
			}
			// Composite propagators are slices; compare by type.
			if otel.GetTracerProvider() != tp || fmt.Sprintf("%T", otel.GetTextMapPropagator()) != fmt.Sprintf("%T", prop) {
				t.Fatalf("globals changed on failure")
			}
		})
	}
}

func TestSetupOTel_ResourceCarriesEnvironment(t *testing.T) {
	keepGlobals(t)
	orig := newServiceResourceFn
	var gotName, gotVersion, gotEnv string
	newServiceResourceFn = func(ctx context.Context, serviceName, version, env string) (*resource.Resource, error) {
		gotName, gotVersion, gotEnv = serviceName, version, env
		return orig(ctx, serviceName, version, env)
	}

	cfg := enabledConfig()
	for _, env := range []string{"", "production"} {
		cfg.Environment = env
		shutdown, err := SetupOTel(context.Background(), cfg, "v2.0.0")
		if err != nil {
			t.Fatalf("env %q: %v", env, err)
		}
		_ = shutdown(context.Background())

		want := env
		if want == "" {
			want = "development"
		}
		if gotName != "alumni-portal" || gotVersion != "v2.0.0" || gotEnv != want {
			t.Fatalf("resource args = %q %q %q; want env %q", gotName, gotVersion, gotEnv, want)
		}
	}
}

func TestClampRatio(t *testing.T) {
	for in, want := range map[float64]float64{-1: 0, 0: 0, 0.25: 0.25, 1: 1, 3: 1} {
		if got := clampRatio(in); got != want {
			t.Errorf("clampRatio(%v) = %v; want %v", in, got, want)
		}
	}
}
