package ratelimit

import (
	"testing"
	"time"
)

func TestBudget_Level(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	th := DefaultThresholds()

	tests := []struct {
		name   string
		budget Budget
		want   Level
	}{
		{name: "not reported", budget: Budget{}, want: LevelHealthy},
		{name: "not reported with zero remaining", budget: Budget{Remaining: 0}, want: LevelHealthy},
		{name: "plenty left", budget: Budget{Remaining: 80, ResetAt: now}, want: LevelHealthy},
		{name: "at low threshold", budget: Budget{Remaining: 20, ResetAt: now}, want: LevelHealthy},
		{name: "below low threshold", budget: Budget{Remaining: 19, ResetAt: now}, want: LevelLow},
		{name: "at exhausted threshold", budget: Budget{Remaining: 5, ResetAt: now}, want: LevelLow},
		{name: "below exhausted threshold", budget: Budget{Remaining: 4, ResetAt: now}, want: LevelExhausted},
		{name: "nothing left", budget: Budget{Remaining: 0, ResetAt: now}, want: LevelExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.budget.Level(th); got != tt.want {
				t.Errorf("Level() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBudget_ResetIn(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		budget Budget
		want   time.Duration
	}{
		{name: "not reported", budget: Budget{}, want: 0},
		{name: "window open", budget: Budget{ResetAt: now.Add(45 * time.Second)}, want: 45 * time.Second},
		{name: "window ended", budget: Budget{ResetAt: now.Add(-time.Second)}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.budget.ResetIn(now); got != tt.want {
				t.Errorf("ResetIn() = %v, want %v", got, tt.want)
			}
		})
	}

	b := Budget{ResetAt: now}
	if !b.expired(now) {
		t.Error("budget should expire at its reset time")
	}
	if b.expired(now.Add(-time.Millisecond)) {
		t.Error("budget expired before its reset time")
	}
}

func TestThresholds_Validate(t *testing.T) {
	tests := []struct {
		name    string
		th      Thresholds
		wantErr bool
	}{
		{name: "defaults", th: DefaultThresholds(), wantErr: false},
		{name: "equal", th: Thresholds{Exhausted: 10, Low: 10}, wantErr: false},
		{name: "negative", th: Thresholds{Exhausted: -1, Low: 10}, wantErr: true},
		{name: "inverted", th: Thresholds{Exhausted: 30, Low: 10}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.th.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLanesFor(t *testing.T) {
	tests := []struct {
		level Level
		max   int
		want  int
	}{
		{level: LevelHealthy, max: 4, want: 4},
		{level: LevelLow, max: 4, want: 1},
		{level: LevelExhausted, max: 4, want: 1},
		{level: LevelHealthy, max: 0, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			if got := LanesFor(tt.level, tt.max); got != tt.want {
				t.Errorf("LanesFor(%v, %d) = %d, want %d", tt.level, tt.max, got, tt.want)
			}
		})
	}
}

func TestLevel_String(t *testing.T) {
	if got := Level(7).String(); got != "Level(7)" {
		t.Errorf("String() = %q", got)
	}
}
