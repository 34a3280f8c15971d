package services

import "time"

// SweepReport is what one reconciler sweep did.
type SweepReport struct {
	Sweep        string
	Matched      int
	Affected     int
	FailedChunks int
	Duration     time.Duration
}

// MetricsRecorder receives lifecycle events from the services. The
// monitoring package implements it with Prometheus collectors.
type MetricsRecorder interface {
	SessionCreated()
	SessionsSuperseded(n int)
	SessionStatusChanged(status string)
	CandidateAdded(sender string)
	LinkCreated()
	SweepCompleted(report SweepReport, err error)
}

type nopMetrics struct{}

func (nopMetrics) SessionCreated() {
}

func (nopMetrics) SessionsSuperseded(int) {
}

func (nopMetrics) SessionStatusChanged(string) {
}

func (nopMetrics) CandidateAdded(string) {
}

func (nopMetrics) LinkCreated() {
}

func (nopMetrics) SweepCompleted(SweepReport, error) {
}

func metricsOrNop(m MetricsRecorder) MetricsRecorder {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
