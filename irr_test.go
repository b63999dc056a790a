package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIRR(t *testing.T) {
	testCases := []struct {
		name  string
		flows []float64
		want  float64
	}{
		{name: "one period at ten percent", flows: []float64{-100, 110}, want: 0.1},
		{name: "skipped period", flows: []float64{-100, 0, 121}, want: 0.1},
		{name: "credit first still yields a numeric rate", flows: []float64{100, -110}, want: 0.1},
		{name: "trailing zero flows are ignored", flows: []float64{-100, 110, 0, 0}, want: 0.1},
		{name: "two equal coupon periods", flows: []float64{-100, 60, 60}, want: 0.13066},
		{name: "loss", flows: []float64{-100, 90}, want: -0.1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, irr(tc.flows), 1e-4)
		})
	}
}

func TestIRR_Degenerate(t *testing.T) {
	assert.Zero(t, irr(nil))
	assert.Zero(t, irr([]float64{}))
	assert.Zero(t, irr([]float64{-100}))
	assert.Zero(t, irr([]float64{0, 0, 0}))
	// All-positive flows have no positive real root.
	assert.Zero(t, irr([]float64{100, 110}))
}
