// Package prometheus renders panel metrics in the Prometheus text exposition format.
//
// [NewExporter] reads from a [signpanel.Panel] and exposes an [http.Handler].
// Counter names are prefixed signpanel_*_total; the single histogram is
// signpanel_backend_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate panel state.
package prometheus
