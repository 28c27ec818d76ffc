package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracer_UnknownExporter(t *testing.T) {
	_, err := NewTracer(context.Background(), "zipkin", "")
	assert.ErrorContains(t, err, "unknown trace exporter")
}

func TestNewTracer_Stdout(t *testing.T) {
	var buf bytes.Buffer
	tr, err := newTracer(context.Background(), ExporterStdout, "", &buf)
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "import.batch", ImportBatchAttrs("/lib", 2)...)
	assert.True(t, span.SpanContext().IsValid())
	SetSpanError(ctx, errors.New("boom"))
	span.End()

	require.NoError(t, tr.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "import.batch")
	assert.Contains(t, buf.String(), "boom")
}

func TestSetSpanError_NoSpan(t *testing.T) {
	assert.NotPanics(t, func() { SetSpanError(context.Background(), errors.New("ignored")) })
}
