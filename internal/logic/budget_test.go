package logic

import (
	"errors"
	"math"
	"testing"
)

func TestRateToTicks(t *testing.T) {
	tests := []struct {
		rate float64
		want int
	}{
		{15, 66664},
		{1, 999997},
		{1000, 997},
		{333333, 0},
		{30.5, 32784}, // 1e6/30.5 = 32786.88 -> 32787
	}
	for _, tt := range tests {
		got, err := RateToTicks(tt.rate)
		if err != nil {
			t.Errorf("RateToTicks(%v): unexpected error: %v", tt.rate, err)
			continue
		}
		if got != tt.want {
			t.Errorf("RateToTicks(%v): got %d, want %d", tt.rate, got, tt.want)
		}
	}
}

func TestRateToTicksRejected(t *testing.T) {
	for _, rate := range []float64{0, -15, 1000000, 500000, math.NaN(), math.Inf(1), 1e-6} {
		_, err := RateToTicks(rate)
		if !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("RateToTicks(%v): expected ErrInvalidParameter, got %v", rate, err)
		}
	}
}

func TestAchievedRate(t *testing.T) {
	n, err := RateToTicks(15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := AchievedRate(n)
	// 1e6 / 66667
	if math.Abs(got-14.99993) > 0.00001 {
		t.Errorf("AchievedRate(%d): got %v, want ~14.99993", n, got)
	}

	// Achieved rate stays within one tick of rounding from the request.
	for _, rate := range []float64{1, 7.5, 15, 60, 999, 12345, 250000} {
		n, err := RateToTicks(rate)
		if err != nil {
			t.Fatalf("RateToTicks(%v): %v", rate, err)
		}
		period := float64(TickHz) / rate
		if math.Abs(float64(n+HeartbeatOverhead)-period) > 0.5 {
			t.Errorf("rate %v: period %d ticks, want within 0.5 of %v", rate, n+HeartbeatOverhead, period)
		}
	}
}

func TestMaxRateHz(t *testing.T) {
	if got := MaxRateHz(); math.Abs(got-333333.33) > 0.01 {
		t.Errorf("MaxRateHz: got %v, want ~333333.33", got)
	}
}

func TestExposureToTicks(t *testing.T) {
	for _, us := range []int{4, 5, 30, 1000} {
		got, err := ExposureToTicks(us)
		if err != nil {
			t.Fatalf("ExposureToTicks(%d): %v", us, err)
		}
		if got != us-3 {
			t.Errorf("ExposureToTicks(%d): got %d, want %d", us, got, us-3)
		}
		if got < 1 {
			t.Errorf("ExposureToTicks(%d): got %d, want >= 1", us, got)
		}
	}
	for _, us := range []int{3, 0, -10} {
		if _, err := ExposureToTicks(us); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("ExposureToTicks(%d): expected ErrInvalidParameter, got %v", us, err)
		}
	}
}

func TestDelayToTicks(t *testing.T) {
	for _, us := range []int{1, 2, 100, 400, 135} {
		got, err := DelayToTicks(us)
		if err != nil {
			t.Fatalf("DelayToTicks(%d): %v", us, err)
		}
		if got != us-1 {
			t.Errorf("DelayToTicks(%d): got %d, want %d", us, got, us-1)
		}
	}
	for _, us := range []int{0, -1} {
		if _, err := DelayToTicks(us); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("DelayToTicks(%d): expected ErrInvalidParameter, got %v", us, err)
		}
	}
}

func TestOffsetToDelay(t *testing.T) {
	got, err := OffsetToDelay(DefaultBaseDelayUs, 35)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 135 {
		t.Errorf("OffsetToDelay(100, 35): got %d, want 135", got)
	}
	n, _ := DelayToTicks(got)
	if n != 134 {
		t.Errorf("register for 135 us: got %d, want 134", n)
	}

	if _, err := OffsetToDelay(DefaultBaseDelayUs, 10); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("OffsetToDelay(100, 10): expected ErrInvalidParameter, got %v", err)
	}
}
