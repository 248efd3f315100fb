package services

import (
	"sync"
	"testing"
)

func TestCorrelativeNextSequence(t *testing.T) {
	db := newTestDB(t)
	correlatives := NewCorrelativeService(db)

	want := []string{"REC-2025-00001", "REC-2025-00002", "REC-2025-00003"}
	for _, expected := range want {
		got, err := correlatives.Next(nil, PrefixReceipt, 2025)
		if err != nil {
			t.Fatalf("Next returned error: %v", err)
		}
		if got != expected {
			t.Errorf("Next returned wrong number: got %v want %v", got, expected)
		}
	}
}

func TestCorrelativeIndependentSequences(t *testing.T) {
	db := newTestDB(t)
	correlatives := NewCorrelativeService(db)

	if _, err := correlatives.Next(nil, PrefixReceipt, 2025); err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if _, err := correlatives.Next(nil, PrefixReceipt, 2025); err != nil {
		t.Fatalf("Next returned error: %v", err)
	}

	// A different prefix starts its own sequence
	got, err := correlatives.Next(nil, PrefixMiscellaneous, 2025)
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if got != "OTR-2025-00001" {
		t.Errorf("Next returned wrong number: got %v want %v", got, "OTR-2025-00001")
	}

	// A different year does too
	got, err = correlatives.Next(nil, PrefixReceipt, 2026)
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if got != "REC-2026-00001" {
		t.Errorf("Next returned wrong number: got %v want %v", got, "REC-2026-00001")
	}
}

func TestCorrelativeCurrent(t *testing.T) {
	db := newTestDB(t)
	correlatives := NewCorrelativeService(db)

	current, err := correlatives.Current(PrefixReceipt, 2025)
	if err != nil {
		t.Fatalf("Current returned error: %v", err)
	}
	if current != 0 {
		t.Errorf("Current before allocation: got %v want 0", current)
	}

	for i := 0; i < 4; i++ {
		if _, err := correlatives.Next(nil, PrefixReceipt, 2025); err != nil {
			t.Fatalf("Next returned error: %v", err)
		}
	}

	current, err = correlatives.Current(PrefixReceipt, 2025)
	if err != nil {
		t.Fatalf("Current returned error: %v", err)
	}
	if current != 4 {
		t.Errorf("Current after allocation: got %v want 4", current)
	}
}

func TestCorrelativeConcurrentAllocation(t *testing.T) {
	db := newTestDB(t)
	correlatives := NewCorrelativeService(db)

	const workers = 10
	results := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := correlatives.Next(nil, PrefixAgreement, 2025)
			if err != nil {
				t.Errorf("Next returned error: %v", err)
				return
			}
			results <- number
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for number := range results {
		if seen[number] {
			t.Errorf("duplicate correlative number allocated: %v", number)
		}
		seen[number] = true
	}

	current, err := correlatives.Current(PrefixAgreement, 2025)
	if err != nil {
		t.Fatalf("Current returned error: %v", err)
	}
	if int(current) != len(seen) {
		t.Errorf("counter value does not match allocations: got %v want %v", current, len(seen))
	}
}

func TestFormatCorrelativeWidensPastFiveDigits(t *testing.T) {
	got := FormatCorrelative(PrefixReceipt, 2025, 123456)
	if got != "REC-2025-123456" {
		t.Errorf("FormatCorrelative: got %v want %v", got, "REC-2025-123456")
	}
}
