package xtoa

import (
	"math"
	"testing"
)

func TestItoA(t *testing.T) {
	for _, e1 := range []struct {
		in  int64
		exp string
	}{
		{0, "0"},
		{7, "7"},
		{-42, "-42"},
		{1234567890, "1234567890"},
		{math.MinInt64, "-9223372036854775808"},
		{math.MaxInt64, "9223372036854775807"},
	} {
		if got := ItoA(e1.in); got != e1.exp {
			t.Fatalf("ItoA(%d): expected %s, got %s", e1.in, e1.exp, got)
		}
	}
}

func TestHtoA(t *testing.T) {
	if got := HtoA(0xffff); got != "0xffff" {
		t.Fatalf("expected 0xffff, got %s", got)
	}
	if got := HtoA(0); got != "0x0" {
		t.Fatalf("expected 0x0, got %s", got)
	}
}

func TestFtoA(t *testing.T) {
	for _, e1 := range []struct {
		in  float64
		exp string
	}{
		{0, "0.0000"},
		{2.5, "2.5000"},
		{-1.0625, "-1.0625"},
		{3.25, "3.2500"},
	} {
		if got := FtoA(e1.in); got != e1.exp {
			t.Fatalf("FtoA(%f): expected %s, got %s", e1.in, e1.exp, got)
		}
	}
}
