package observability

import (
	"context"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, m interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	return out.GetCounter().GetValue()
}

func TestDefault_IsSingleton(t *testing.T) {
	m1 := Default()
	m2 := Default()
	require.Same(t, m1, m2)

	before := counterValue(t, m1.ChatStreamsTotal.WithLabelValues("test"))
	m2.ChatStreamsTotal.WithLabelValues("test").Inc()
	require.Equal(t, before+1, counterValue(t, m1.ChatStreamsTotal.WithLabelValues("test")))
}

func TestInitTracing_NoExporter(t *testing.T) {
	shutdown, err := InitTracing("ai-tutor-test", false)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
