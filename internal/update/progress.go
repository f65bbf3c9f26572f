package update

import "time"

// Progress is a snapshot of a download in flight.
type Progress struct {
	Bytes int64
	// Total is the size announced by the server, or 0 when unknown.
	Total   int64
	Elapsed time.Duration
	// Throughput is bytes per second measured over the latest chunk.
	Throughput float64
}

// Fraction returns the completed share in [0, 1], or 0 when the total is unknown.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Bytes) / float64(p.Total)
	if f > 1 {
		return 1
	}
	return f
}

// ETA estimates the remaining time from the current throughput.
func (p Progress) ETA() time.Duration {
	if p.Total <= 0 || p.Throughput <= 0 || p.Bytes >= p.Total {
		return 0
	}
	remaining := float64(p.Total-p.Bytes) / p.Throughput
	return time.Duration(remaining * float64(time.Second))
}

// ProgressReporter receives snapshots while a download runs. Report is called
// after every chunk; Finish exactly once, with the error that ended the
// download or nil on success.
type ProgressReporter interface {
	Report(Progress)
	Finish(Progress, error)
}

type nopReporter struct{}

func (nopReporter) Report(Progress)        {}
func (nopReporter) Finish(Progress, error) {}
