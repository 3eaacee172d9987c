package video

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type scriptedEncoder struct {
	fail  int
	calls [][]string
}

func (e *scriptedEncoder) Encode(ctx context.Context, args []string) error {
	e.calls = append(e.calls, args)
	out := args[len(args)-1]
	if len(e.calls) <= e.fail {
		os.WriteFile(out, []byte("partial"), 0644)
		return errors.New("encoder crashed")
	}
	return os.WriteFile(out, []byte("mp4"), 0644)
}

func TestTiers(t *testing.T) {
	tiers := Tiers("8000k", func(n int) int { return min(n, 2) })
	if len(tiers) != 3 {
		t.Fatalf("Expected 3 tiers, got %d", len(tiers))
	}

	high := strings.Join(tiers[0].Args(), " ")
	if high != "-c:v libx264 -c:a aac -b:v 8000k -crf 18 -threads 2 -preset medium" {
		t.Errorf("unexpected first tier: %s", high)
	}
	safe := strings.Join(tiers[1].Args(), " ")
	if safe != "-c:v libx264 -c:a aac -b:v 4000k -crf 23 -threads 2 -preset faster" {
		t.Errorf("unexpected second tier: %s", safe)
	}
	if got := strings.Join(tiers[2].Args(), " "); got != "-c:v libx264 -c:a aac" {
		t.Errorf("unexpected last tier: %s", got)
	}
}

func TestNormalizeBitrate(t *testing.T) {
	tests := []struct {
		in, want string
		ok       bool
	}{
		{"4000k", "4000k", true},
		{"8M", "8M", true},
		{"", DefaultBitrate, true},
		{"fast", DefaultBitrate, false},
		{"0k", DefaultBitrate, false},
	}
	for _, tt := range tests {
		got, ok := NormalizeBitrate(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeBitrate(%q) = %q, %v", tt.in, got, ok)
		}
	}
}

func TestEncodeWithFallback(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.mp4")
	enc := &scriptedEncoder{fail: 1}
	var failed []string

	tier, err := EncodeWithFallback(context.Background(), enc, []string{"-y", "-i", "in.png"}, Tiers("6000k", nil), out,
		func(tr Tier, err error) { failed = append(failed, tr.Name) })
	if err != nil {
		t.Fatalf("expected second tier to succeed: %v", err)
	}
	if tier.Name != "safe" || len(enc.calls) != 2 {
		t.Errorf("tier %s after %d calls", tier.Name, len(enc.calls))
	}
	if len(failed) != 1 || failed[0] != "high" {
		t.Errorf("unexpected failures %v", failed)
	}
	if enc.calls[0][0] != "-y" || enc.calls[1][len(enc.calls[1])-1] != out {
		t.Error("base args first, output path last")
	}
	if data, _ := os.ReadFile(out); string(data) != "mp4" {
		t.Error("output must come from the successful tier")
	}
}

func TestEncodeAllTiersFail(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.mp4")
	enc := &scriptedEncoder{fail: 3}

	_, err := EncodeWithFallback(context.Background(), enc, nil, Tiers("", nil), out, nil)
	if !errors.Is(err, ErrAllTiersFailed) {
		t.Errorf("expected ErrAllTiersFailed, got %v", err)
	}
	if len(enc.calls) != 3 {
		t.Errorf("Expected 3 attempts, got %d", len(enc.calls))
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("partial output must be removed")
	}
}
