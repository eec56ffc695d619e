// Package otel registers panel metrics as OpenTelemetry observable instruments.
//
// Counters become Int64ObservableCounter instruments. The latency histogram is
// exposed as one cumulative gauge per bucket plus a count gauge, all read from a
// single callback per collection.
//
// # What this package must NOT do
//
//   - Install a global MeterProvider.
//   - Mutate panel state.
package otel
