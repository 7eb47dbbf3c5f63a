package delay

import "testing"

func TestNewValidation(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for size=0")
	}
	if _, err := New(-1); err == nil {
		t.Fatal("expected error for size=-1")
	}
}

func TestLineReadWrite(t *testing.T) {
	d, err := New(8)
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 5; i++ {
		d.Write(float64(i))
	}

	// Most recent write is at delay 1.
	tests := []struct {
		delay int
		want  float64
	}{
		{1, 5},
		{2, 4},
		{5, 1},
		{6, 0},
		{8, 0},
		{9, 5},
	}
	for _, tt := range tests {
		if got := d.Read(tt.delay); got != tt.want {
			t.Fatalf("Read(%d) = %v, want %v", tt.delay, got, tt.want)
		}
	}
}

func TestLineWrapAround(t *testing.T) {
	d, err := New(4)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 6; i++ {
		d.Write(float64(i))
	}
	if got := d.Read(4); got != 3 {
		t.Fatalf("Read(4) = %v, want 3", got)
	}
	if got := d.Read(2); got != 5 {
		t.Fatalf("Read(2) = %v, want 5", got)
	}
}

func TestLineReset(t *testing.T) {
	d, err := New(3)
	if err != nil {
		t.Fatal(err)
	}
	d.Write(1)
	d.Write(2)
	d.Reset()
	for delay := 1; delay <= d.Len(); delay++ {
		if got := d.Read(delay); got != 0 {
			t.Fatalf("Read(%d) = %v after Reset, want 0", delay, got)
		}
	}

	// Three writes fill the line, so the oldest is the first of them.
	d.Write(7)
	d.Write(8)
	d.Write(9)
	if got := d.Read(d.Len()); got != 7 {
		t.Fatalf("Read(%d) = %v, want 7", d.Len(), got)
	}
}
