package budget

import (
	"math"
	"testing"
	"time"

	"github.com/harrison/maestro/internal/phase"
)

func TestResolveDelta(t *testing.T) {
	tests := []struct {
		name       string
		provider   float64
		agent      float64
		wantCost   float64
		wantSource Source
	}{
		{"provider only", 0.05, 0, 0.05, SourceProvider},
		{"agent only", 0, 0.03, 0.03, SourceAgent},
		{"provider wins over agent", 0.05, 0.99, 0.05, SourceProvider},
		{"neither", 0, 0, 0, SourceNone},
		{"negative provider falls back to agent", -1, 0.02, 0.02, SourceAgent},
		{"negative agent counts as absent", 0, -0.5, 0, SourceNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost, source := ResolveDelta(tt.provider, tt.agent)
			if cost != tt.wantCost {
				t.Errorf("Expected cost %f, got %f", tt.wantCost, cost)
			}
			if source != tt.wantSource {
				t.Errorf("Expected source %v, got %v", tt.wantSource, source)
			}
		})
	}
}

func TestSourceString(t *testing.T) {
	if SourceProvider.String() != "provider" {
		t.Errorf("Expected 'provider', got %q", SourceProvider.String())
	}
	if SourceAgent.String() != "agent" {
		t.Errorf("Expected 'agent', got %q", SourceAgent.String())
	}
	if SourceNone.String() != "none" {
		t.Errorf("Expected 'none', got %q", SourceNone.String())
	}
}

func TestLedgerAccumulates(t *testing.T) {
	l := NewLedger(10.00)

	l.Add(Entry{Phase: phase.Plan, CostUSD: 0.25, Source: SourceProvider})
	l.Add(Entry{Phase: phase.Implement, CostUSD: 0.50, Source: SourceProvider})

	if got := l.Total(); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("Expected total 0.75, got %f", got)
	}
	if len(l.Entries()) != 2 {
		t.Errorf("Expected 2 entries, got %d", len(l.Entries()))
	}
}

func TestLedgerEntriesIsACopy(t *testing.T) {
	l := NewLedger(0)
	l.Add(Entry{CostUSD: 0.10})

	entries := l.Entries()
	entries[0].CostUSD = 99

	if l.Entries()[0].CostUSD != 0.10 {
		t.Error("Expected ledger entries to be isolated from caller mutation")
	}
}

func TestLedgerCeiling(t *testing.T) {
	l := NewLedger(1.00)

	l.Add(Entry{CostUSD: 0.60})
	if l.Exceeded() {
		t.Error("Expected ceiling not reached at 0.60 of 1.00")
	}
	if got := l.Remaining(); math.Abs(got-0.40) > 1e-9 {
		t.Errorf("Expected 0.40 remaining, got %f", got)
	}

	l.Add(Entry{CostUSD: 0.40})
	if !l.Exceeded() {
		t.Error("Expected ceiling reached at exactly the limit")
	}
	if got := l.Remaining(); got != 0 {
		t.Errorf("Expected 0 remaining at the limit, got %f", got)
	}

	l.Add(Entry{CostUSD: 5.00})
	if got := l.Remaining(); got != 0 {
		t.Errorf("Expected remaining floored at 0 past the limit, got %f", got)
	}
}

func TestLedgerNoLimit(t *testing.T) {
	for _, limit := range []float64{0, -1} {
		l := NewLedger(limit)
		l.Add(Entry{CostUSD: 1000})

		if l.HasLimit() {
			t.Errorf("Expected no limit for %f", limit)
		}
		if l.Exceeded() {
			t.Errorf("Expected no ceiling for limit %f", limit)
		}
		if l.Limit() != 0 {
			t.Errorf("Expected Limit() 0 for %f, got %f", limit, l.Limit())
		}
	}
}

func TestLedgerCeilingBlocksNextIterationNotInFlight(t *testing.T) {
	l := NewLedger(1.00)
	l.Add(Entry{CostUSD: 0.99})

	// The iteration that crosses the ceiling still records its full
	// spend; only the check before the following iteration trips.
	if l.Exceeded() {
		t.Fatal("Expected no trip below the ceiling")
	}
	l.Add(Entry{CostUSD: 0.75})
	if math.Abs(l.Total()-1.74) > 1e-9 {
		t.Errorf("Expected the crossing iteration's full spend recorded, got %f", l.Total())
	}
	if !l.Exceeded() {
		t.Error("Expected the ceiling to trip at the next boundary")
	}
}

func TestLedgerModels(t *testing.T) {
	l := NewLedger(0)
	l.Add(Entry{CostUSD: 0.1, Model: "claude-sonnet-4-5"})
	l.Add(Entry{CostUSD: 0.1, Model: "claude-opus-4-5"})
	l.Add(Entry{CostUSD: 0.1, Model: "claude-sonnet-4-5"})
	l.Add(Entry{CostUSD: 0.1, Model: ""})

	models := l.Models()
	if len(models) != 2 {
		t.Fatalf("Expected 2 distinct models, got %v", models)
	}
	if models[0] != "claude-sonnet-4-5" || models[1] != "claude-opus-4-5" {
		t.Errorf("Expected first-use order, got %v", models)
	}
}

func TestLedgerCostPerHour(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	l := NewLedger(0)
	l.Add(Entry{Timestamp: base, CostUSD: 0.30})
	l.Add(Entry{Timestamp: base.Add(15 * time.Minute), CostUSD: 0.30})

	// 0.60 USD over 15 minutes is 2.40 USD/hour.
	if got := l.CostPerHour(); math.Abs(got-2.40) > 1e-9 {
		t.Errorf("Expected 2.40 USD/h, got %f", got)
	}
}

func TestLedgerCostPerHourInsufficientData(t *testing.T) {
	l := NewLedger(0)
	if got := l.CostPerHour(); got != 0 {
		t.Errorf("Expected 0 for empty ledger, got %f", got)
	}

	now := time.Now()
	l.Add(Entry{Timestamp: now, CostUSD: 0.30})
	if got := l.CostPerHour(); got != 0 {
		t.Errorf("Expected 0 for single entry, got %f", got)
	}

	// Two entries at the same instant span no measurable interval.
	l.Add(Entry{Timestamp: now, CostUSD: 0.30})
	if got := l.CostPerHour(); got != 0 {
		t.Errorf("Expected 0 for zero elapsed time, got %f", got)
	}
}
