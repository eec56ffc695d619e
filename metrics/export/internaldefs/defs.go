package internaldefs

import (
	"github.com/MrEthical07/signpanel"
)

// CounterDef names one panel counter for export.
type CounterDef struct {
	ID   signpanel.MetricID
	Name string
	Help string
}

// HistogramDef names one panel histogram for export.
type HistogramDef struct {
	ID   signpanel.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: signpanel.MetricCodeSendSuccess, Name: "signpanel_code_send_success_total", Help: "Verification codes accepted by the backend."},
	{ID: signpanel.MetricCodeSendFailure, Name: "signpanel_code_send_failure_total", Help: "Verification code requests rejected or unreachable."},
	{ID: signpanel.MetricCodeSendCooldown, Name: "signpanel_code_send_cooldown_total", Help: "Sends refused locally because a cooldown was active."},
	{ID: signpanel.MetricCooldownStarted, Name: "signpanel_cooldown_started_total", Help: "Cooldown windows started after an accepted send."},
	{ID: signpanel.MetricCooldownResumed, Name: "signpanel_cooldown_resumed_total", Help: "Persisted cooldown windows resumed on restore."},
	{ID: signpanel.MetricCooldownExpired, Name: "signpanel_cooldown_expired_total", Help: "Cooldown windows that ran to completion."},
	{ID: signpanel.MetricCooldownPersistFailure, Name: "signpanel_cooldown_persist_failure_total", Help: "Cooldown windows that could not be written to storage."},
	{ID: signpanel.MetricValidationFailure, Name: "signpanel_validation_failure_total", Help: "Form submissions stopped by client-side validation."},
	{ID: signpanel.MetricRegisterSuccess, Name: "signpanel_register_success_total", Help: "Successful sign-ups."},
	{ID: signpanel.MetricRegisterFailure, Name: "signpanel_register_failure_total", Help: "Failed sign-ups."},
	{ID: signpanel.MetricLoginSuccess, Name: "signpanel_login_success_total", Help: "Successful sign-ins."},
	{ID: signpanel.MetricLoginFailure, Name: "signpanel_login_failure_total", Help: "Failed sign-ins."},
	{ID: signpanel.MetricResetSuccess, Name: "signpanel_reset_success_total", Help: "Successful password resets."},
	{ID: signpanel.MetricResetFailure, Name: "signpanel_reset_failure_total", Help: "Failed password resets."},
	{ID: signpanel.MetricCalculateSuccess, Name: "signpanel_calculate_success_total", Help: "Calculator requests answered by the backend."},
	{ID: signpanel.MetricCalculateFailure, Name: "signpanel_calculate_failure_total", Help: "Calculator requests that failed."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: signpanel.MetricBackendLatency, Name: "signpanel_backend_latency_seconds", Help: "Backend request latency histogram."},
}

// HistogramBounds are the le labels matching signpanel.HistogramBounds plus +Inf.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds made safe for instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
