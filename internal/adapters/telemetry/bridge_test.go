package telemetry_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/forge/internal/adapters/telemetry"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/forge/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func TestLogBridge_ReportsFinishedSpans(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)

	gomock.InOrder(
		logger.EXPECT().Debug(gomock.Cond(func(msg string) bool {
			return strings.HasPrefix(msg, "lockfile.generate finished in ")
		})),
		logger.EXPECT().Debug(gomock.Cond(func(msg string) bool {
			return strings.HasPrefix(msg, "resolver.resolve failed after ") && strings.HasSuffix(msg, ": not found")
		})),
	)

	useProvider(t, telemetry.NewProvider(logger))
	tracer := telemetry.NewOTelTracer("test")

	_, span := tracer.Start(context.Background(), "lockfile.generate", ports.WithAttribute("force", true))
	span.End()

	_, span = tracer.Start(context.Background(), "resolver.resolve")
	span.RecordError(errors.New("not found"))
	span.End()
}

func TestLogBridge_NilLogger(t *testing.T) {
	useProvider(t, telemetry.NewProvider(nil))

	_, span := telemetry.NewOTelTracer("test").Start(context.Background(), "noop")
	span.End()
}

func useProvider(t *testing.T, tp *sdktrace.TracerProvider) {
	t.Helper()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		require.NoError(t, tp.Shutdown(context.Background()))
		otel.SetTracerProvider(prev)
	})
}
