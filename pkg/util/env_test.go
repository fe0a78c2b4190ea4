package util

import (
	"testing"
	"time"
)

func TestParseIntDefault(t *testing.T) {
	if got := ParseIntDefault("", 3); got != 3 {
		t.Fatalf("expected default, got %d", got)
	}
	if got := ParseIntDefault(" 7 ", 3); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := ParseIntDefault("x", 3); got != 3 {
		t.Fatalf("expected default on garbage, got %d", got)
	}
}

func TestParseDurationDefault(t *testing.T) {
	cases := map[string]time.Duration{
		"":      time.Minute,
		"1.5s":  1500 * time.Millisecond,
		"90":    90 * time.Second,
		"2m":    2 * time.Minute,
		"never": time.Minute,
		"-1":    time.Minute,
	}
	for in, want := range cases {
		if got := ParseDurationDefault(in, time.Minute); got != want {
			t.Fatalf("ParseDurationDefault(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" a:9092, ,b:9092,")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("unexpected split %v", got)
	}
	if len(SplitList("")) != 0 {
		t.Fatalf("expected empty list")
	}
}
