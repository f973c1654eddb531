package player

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/eel-brah/kokorodoki/internal/player"

type metrics struct {
	played       metric.Int64Counter
	skipped      metric.Int64Counter
	commands     metric.Int64Counter
	synthSeconds metric.Float64Histogram
}

func newMetrics() *metrics {
	meter := otel.Meter(meterName)
	m := &metrics{}
	m.played, _ = meter.Int64Counter("kokorodoki.utterances.played",
		metric.WithDescription("Utterances played to completion"))
	m.skipped, _ = meter.Int64Counter("kokorodoki.utterances.skipped",
		metric.WithDescription("Utterances skipped after synthesis failure"))
	m.commands, _ = meter.Int64Counter("kokorodoki.commands.total",
		metric.WithDescription("Playback commands processed"))
	m.synthSeconds, _ = meter.Float64Histogram("kokorodoki.synthesis.duration",
		metric.WithDescription("Synthesis latency per utterance"),
		metric.WithUnit("s"))
	return m
}

func (m *metrics) command(name string) {
	if m == nil || m.commands == nil {
		return
	}
	m.commands.Add(context.Background(), 1, metric.WithAttributes(attribute.String("verb", name)))
}
