package light

import "testing"

type recorder struct {
	writes []struct {
		index int
		level float64
	}
}

func (r *recorder) Set(index int, level float64) {
	r.writes = append(r.writes, struct {
		index int
		level float64
	}{index, level})
}

func TestSetSuppressesUnchangedWrites(t *testing.T) {
	var rec recorder
	l := NewLevels(&rec, 3)

	l.Set(1, 0.5)
	l.Set(1, 0.5)
	l.Set(1, 0.5)

	if len(rec.writes) != 1 {
		t.Fatalf("got %d writes, want 1", len(rec.writes))
	}

	l.Set(1, 0.6)
	if len(rec.writes) != 2 {
		t.Fatalf("after change: got %d writes, want 2", len(rec.writes))
	}
}

func TestSetClamps(t *testing.T) {
	var rec recorder
	l := NewLevels(&rec, 1)

	l.Set(0, 1.5)
	if got := l.Get(0); got != 1.0 {
		t.Errorf("over-range: got %v, want 1.0", got)
	}
	l.Set(0, -0.5)
	if got := l.Get(0); got != 0.0 {
		t.Errorf("under-range: got %v, want 0.0", got)
	}
}

func TestFillAndSnapshot(t *testing.T) {
	var rec recorder
	l := NewLevels(&rec, 4)

	l.Fill(0.3)
	l.FillSubset([]int{0, 2}, 0.9)

	want := []float64{0.9, 0.3, 0.9, 0.3}
	got := l.Snapshot()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("snapshot[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	// Snapshot must be a copy.
	got[0] = 0
	if l.Get(0) != 0.9 {
		t.Fatal("snapshot aliases the live buffer")
	}
}
