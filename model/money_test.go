package model

import "testing"

func TestRound2(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		want   float64
	}{
		{"already two decimals", 12.34, 12.34},
		{"rounds up", 12.346, 12.35},
		{"rounds down", 12.344, 12.34},
		{"half rounds to even, floor even", 0.125, 0.12},
		{"half rounds to even, floor odd", 0.375, 0.38},
		{"zero", 0, 0},
		{"negative", -12.344, -12.34},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Round2(tt.amount)
			if got != tt.want {
				t.Errorf("Round2(%v) = %v, want %v", tt.amount, got, tt.want)
			}
		})
	}
}

func TestClampUnit(t *testing.T) {
	tests := []struct {
		name string
		v    float64
		want float64
	}{
		{"within range", 0.5, 0.5},
		{"below zero", -0.2, 0},
		{"above one", 1.2, 1},
		{"exactly zero", 0, 0},
		{"exactly one", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampUnit(tt.v); got != tt.want {
				t.Errorf("ClampUnit(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}
