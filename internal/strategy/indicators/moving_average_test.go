package indicators

import (
	"math"
	"testing"
)

func TestSMAAndEMA(t *testing.T) {
	closes := []float64{100.0, 102.0, 101.0, 103.0, 104.0}

	tests := []struct {
		name          string
		calc          func() (float64, error)
		expectedValue float64
		expectError   bool
	}{
		{
			name:          "SMA with sufficient data",
			calc:          func() (float64, error) { return SMA(closes, 3) },
			expectedValue: 102.666667, // (101 + 103 + 104) / 3
		},
		{
			name:          "EMA with sufficient data",
			calc:          func() (float64, error) { return EMA(closes, 3) },
			expectedValue: 103.0,
		},
		{
			name:        "Insufficient data",
			calc:        func() (float64, error) { return SMA(closes, 6) },
			expectError: true,
		},
		{
			name:        "Zero period",
			calc:        func() (float64, error) { return EMA(closes, 0) },
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := tt.calc()
			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			if math.Abs(value-tt.expectedValue) > 0.0001 {
				t.Errorf("Expected value %f, got %f", tt.expectedValue, value)
			}
		})
	}
}

func TestEMASeries_Length(t *testing.T) {
	series, err := EMASeries([]float64{1, 2, 3, 4, 5, 6}, 3)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(series) != 4 {
		t.Fatalf("Expected 4 values, got %d", len(series))
	}
	if series[0] != 2 {
		t.Errorf("Expected SMA seed 2, got %f", series[0])
	}
}

func TestMACD(t *testing.T) {
	rising := make([]float64, 60)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	res, err := MACD(rising, 12, 26, 9)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.MACD <= 0 {
		t.Errorf("Expected positive MACD on a rising series, got %f", res.MACD)
	}
	// on a straight line the MACD converges, so the signal catches up
	if math.Abs(res.Histogram) > 0.01 {
		t.Errorf("Expected histogram near zero, got %f", res.Histogram)
	}

	if _, err := MACD(rising[:30], 12, 26, 9); err == nil {
		t.Error("Expected error for insufficient data")
	}
	if _, err := MACD(rising, 26, 12, 9); err == nil {
		t.Error("Expected error when fast >= slow")
	}
}
