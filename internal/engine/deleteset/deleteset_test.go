package deleteset

import "testing"

func TestSortAndMerge(t *testing.T) {
	tests := []struct {
		name string
		in   []Range
		want []Range
	}{
		{"empty", nil, nil},
		{"single", []Range{{5, 2}}, []Range{{5, 2}}},
		{"adjacent", []Range{{0, 2}, {2, 3}}, []Range{{0, 5}}},
		{"overlap", []Range{{0, 4}, {2, 4}}, []Range{{0, 6}}},
		{"contained", []Range{{0, 10}, {3, 2}}, []Range{{0, 10}}},
		{"unsorted gap", []Range{{10, 1}, {0, 2}}, []Range{{0, 2}, {10, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := New()
			for _, r := range tt.in {
				ds.Add(1, r.Clock, r.Len)
			}
			ds.SortAndMerge()
			got := ds.Ranges(1)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("range %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAddIgnoresZeroLength(t *testing.T) {
	ds := New()
	ds.Add(1, 4, 0)
	if !ds.IsEmpty() {
		t.Error("zero-length range should not be recorded")
	}
}

func TestContains(t *testing.T) {
	ds := New()
	ds.Add(1, 0, 3)
	ds.Add(1, 10, 2)
	ds.Add(2, 5, 1)
	ds.SortAndMerge()

	tests := []struct {
		client, clock uint64
		want          bool
	}{
		{1, 0, true},
		{1, 2, true},
		{1, 3, false},
		{1, 9, false},
		{1, 11, true},
		{1, 12, false},
		{2, 5, true},
		{2, 4, false},
		{3, 0, false},
	}
	for _, tt := range tests {
		if got := ds.Contains(tt.client, tt.clock); got != tt.want {
			t.Errorf("Contains(%d, %d) = %v, want %v", tt.client, tt.clock, got, tt.want)
		}
	}
}

func TestMergeIsOrderIndependent(t *testing.T) {
	a := New()
	a.Add(1, 0, 2)
	a.Add(2, 7, 1)
	b := New()
	b.Add(1, 2, 3)
	c := New()
	c.Add(1, 20, 1)
	c.Add(3, 0, 4)

	ab := Merge(Merge(a, b), c)
	ba := Merge(c, Merge(b, a))
	flat := Merge(b, c, a)

	if !ab.Equal(ba) || !ab.Equal(flat) {
		t.Errorf("merge depends on order: %s / %s / %s", ab, ba, flat)
	}
	if got := ab.String(); got != "1:[0+5 20+1] 2:[7+1] 3:[0+4]" {
		t.Errorf("String() = %q", got)
	}
}

func TestMergeLeavesInputsUntouched(t *testing.T) {
	a := New()
	a.Add(1, 4, 1)
	a.Add(1, 0, 1)
	b := New()
	b.Add(1, 1, 3)

	_ = Merge(a, b)

	if len(a.Ranges(1)) != 2 || a.Ranges(1)[0].Clock != 4 {
		t.Errorf("input a modified: %v", a.Ranges(1))
	}
	if len(b.Ranges(1)) != 1 {
		t.Errorf("input b modified: %v", b.Ranges(1))
	}
}

func TestMergeNil(t *testing.T) {
	a := New()
	a.Add(1, 0, 1)
	m := Merge(nil, a, nil)
	if !m.Equal(a) {
		t.Errorf("got %s, want %s", m, a)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	a := New()
	a.Add(1, 0, 1)
	clone := a.Clone()
	clone.Add(1, 5, 1)
	clone.SortAndMerge()

	if len(a.Ranges(1)) != 1 {
		t.Errorf("clone shares storage with original")
	}
	if clone.Size() != 2 {
		t.Errorf("Size() = %d, want 2", clone.Size())
	}
}

func TestEach(t *testing.T) {
	ds := New()
	ds.Add(2, 0, 1)
	ds.Add(1, 3, 1)
	ds.Add(1, 0, 1)
	ds.SortAndMerge()

	var got []uint64
	ds.Each(func(client uint64, r Range) {
		got = append(got, client, r.Clock)
	})
	want := []uint64{1, 0, 1, 3, 2, 0}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
