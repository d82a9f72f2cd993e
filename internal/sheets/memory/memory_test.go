package memory

import (
	"context"
	"testing"
)

func TestStoreAppendRow(t *testing.T) {
	s := New()

	ref, err := s.AppendRow(context.Background(), []any{int64(1), "2017-06-10", "Zoo", 15.25})
	if err != nil {
		t.Fatal(err)
	}
	if ref != "mem!A1:D1" {
		t.Errorf("ref = %q", ref)
	}
	ref, _ = s.AppendRow(context.Background(), []any{int64(2), "2017-06-10", "Starbucks", 5.75})
	if ref != "mem!A2:D2" {
		t.Errorf("ref = %q", ref)
	}

	rows := s.Rows()
	if len(rows) != 2 || rows[1][2] != "Starbucks" {
		t.Fatalf("unexpected rows %v", rows)
	}

	rows[0][2] = "mutated"
	if s.Rows()[0][2] != "Zoo" {
		t.Error("Rows must return copies")
	}
}
