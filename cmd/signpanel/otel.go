package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/MrEthical07/signpanel"
	otelexport "github.com/MrEthical07/signpanel/metrics/export/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// otelDump reads the panel's instruments through an OpenTelemetry manual reader.
type otelDump struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
	exporter *otelexport.Exporter
}

func startOTelDump(p *signpanel.Panel) (*otelDump, error) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	exporter, err := otelexport.NewExporter(provider.Meter("signpanel"), p)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, err
	}
	return &otelDump{reader: reader, provider: provider, exporter: exporter}, nil
}

// finish collects once, writes "name value" lines sorted by name and shuts down.
func (d *otelDump) finish(w io.Writer) error {
	ctx := context.Background()
	defer func() {
		_ = d.exporter.Close()
		_ = d.provider.Shutdown(ctx)
	}()

	var rm metricdata.ResourceMetrics
	if err := d.reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collecting metrics: %w", err)
	}

	var lines []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					lines = append(lines, fmt.Sprintf("%s %d", m.Name, dp.Value))
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					lines = append(lines, fmt.Sprintf("%s %d", m.Name, dp.Value))
				}
			}
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	return nil
}
