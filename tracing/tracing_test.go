package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type recordingExporter struct {
	spans []sdktrace.ReadOnlySpan
}

func (e *recordingExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.spans = append(e.spans, spans...)
	return nil
}

func (e *recordingExporter) Shutdown(ctx context.Context) error { return nil }

func TestFlushVacbPropagatesResult(t *testing.T) {
	assert.NoError(t, FlushVacb(context.Background(), 0, func(context.Context) error { return nil }))

	want := errors.New("boom")
	err := FlushVacb(context.Background(), 0, func(context.Context) error { return want })
	assert.Equal(t, want, err)
}

func TestPageOutPropagatesResult(t *testing.T) {
	assert.NoError(t, PageOut(context.Background(), 0x1000, func(context.Context) error { return nil }))

	want := errors.New("fault")
	err := PageOut(context.Background(), 0x1000, func(context.Context) error { return want })
	assert.Equal(t, want, err)
}

func TestInitProviderExportsSpans(t *testing.T) {
	exp := &recordingExporter{}
	p := InitProvider(exp)
	defer func() {
		require.NoError(t, Shutdown(context.Background()))
	}()

	require.NoError(t, FlushVacb(context.Background(), 10, func(context.Context) error { return nil }))
	require.NoError(t, p.ForceFlush(context.Background()))

	require.Len(t, exp.spans, 1)
	assert.Equal(t, "flush_vacb", exp.spans[0].Name())
}

func TestShutdownWithoutInitIsNoop(t *testing.T) {
	provider = nil
	assert.NoError(t, Shutdown(context.Background()))
}
