package update

import (
	"testing"
	"time"
)

func TestProgressFraction(t *testing.T) {
	tests := []struct {
		p    Progress
		want float64
	}{
		{Progress{Bytes: 50, Total: 100}, 0.5},
		{Progress{Bytes: 50}, 0},
		{Progress{Bytes: 150, Total: 100}, 1},
	}
	for _, tt := range tests {
		if got := tt.p.Fraction(); got != tt.want {
			t.Errorf("%+v Fraction() = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestProgressETA(t *testing.T) {
	p := Progress{Bytes: 1000, Total: 3000, Throughput: 1000}
	if got := p.ETA(); got != 2*time.Second {
		t.Errorf("ETA() = %v, want 2s", got)
	}
	if got := (Progress{Bytes: 10, Total: 0, Throughput: 5}).ETA(); got != 0 {
		t.Errorf("unknown total ETA() = %v, want 0", got)
	}
	if got := (Progress{Bytes: 10, Total: 20}).ETA(); got != 0 {
		t.Errorf("zero throughput ETA() = %v, want 0", got)
	}
}
