package search

import "testing"

func TestAcceptanceCounterEmptyWindow(t *testing.T) {
	c := NewAcceptanceCounter(10)
	if got := c.AcceptanceRatio(); got != 0.0 {
		t.Errorf("Expected 0.0 for empty window, got %f", got)
	}
}

func TestAcceptanceCounterPartialWindow(t *testing.T) {
	c := NewAcceptanceCounter(10)
	c.Enqueue(true)
	c.Enqueue(false)
	c.Enqueue(true)
	c.Enqueue(true)
	if got := c.AcceptanceRatio(); got != 0.75 {
		t.Errorf("Expected 0.75, got %f", got)
	}
}

func TestAcceptanceCounterEvictsOldest(t *testing.T) {
	c := NewAcceptanceCounter(3)
	c.Enqueue(true)
	c.Enqueue(true)
	c.Enqueue(true)
	if got := c.AcceptanceRatio(); got != 1.0 {
		t.Errorf("Expected 1.0 with full window of accepts, got %f", got)
	}

	// Each rejection evicts one of the original accepts.
	c.Enqueue(false)
	if got := c.AcceptanceRatio(); got != 2.0/3.0 {
		t.Errorf("Expected 2/3, got %f", got)
	}
	c.Enqueue(false)
	c.Enqueue(false)
	if got := c.AcceptanceRatio(); got != 0.0 {
		t.Errorf("Expected 0.0 after window rolled over, got %f", got)
	}
}

func TestAcceptanceCounterLongSequence(t *testing.T) {
	c := NewAcceptanceCounter(100)
	for i := 0; i < 100; i++ {
		c.Enqueue(true)
	}
	for i := 0; i < 50; i++ {
		c.Enqueue(false)
	}
	// Window now holds 50 accepts followed by 50 rejects.
	if got := c.AcceptanceRatio(); got != 0.5 {
		t.Errorf("Expected 0.5, got %f", got)
	}
}

func TestAcceptanceCounterMinimumWindow(t *testing.T) {
	c := NewAcceptanceCounter(0)
	c.Enqueue(true)
	if got := c.AcceptanceRatio(); got != 1.0 {
		t.Errorf("Expected 1.0, got %f", got)
	}
	c.Enqueue(false)
	if got := c.AcceptanceRatio(); got != 0.0 {
		t.Errorf("Expected 0.0, got %f", got)
	}
}
