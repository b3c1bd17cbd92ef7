package store

import (
	"strings"
	"testing"
)

func TestGenerateID(t *testing.T) {
	t.Run("valid prefix", func(t *testing.T) {
		id, err := GenerateID(ProgramIDPrefix, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(id) != 10 { // "prg-" + 6 chars
			t.Fatalf("expected length 10, got %d: %s", len(id), id)
		}
		if !strings.HasPrefix(id, "prg-") {
			t.Fatalf("expected prefix prg-, got %s", id)
		}
	})

	t.Run("empty prefix", func(t *testing.T) {
		_, err := GenerateID("", nil)
		if err == nil {
			t.Fatal("expected error for empty prefix")
		}
	})

	t.Run("retries on collision", func(t *testing.T) {
		calls := 0
		exists := func(id string) (bool, error) {
			calls++
			return calls < 3, nil // first 2 calls collide
		}
		id, err := GenerateID(ActivityIDPrefix, exists)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id == "" {
			t.Fatal("expected non-empty id")
		}
		if calls != 3 {
			t.Fatalf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		exists := func(id string) (bool, error) {
			return true, nil // always collide
		}
		_, err := GenerateID(ScheduleEventIDPrefix, exists)
		if err == nil {
			t.Fatal("expected error after max attempts")
		}
	})
}
