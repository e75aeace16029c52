package ringbuf

import (
	"sync"
	"testing"
)

func TestRing_EvictsOldestKeepsOrder(t *testing.T) {
	r := New[int](5)
	for i := 1; i <= 12; i++ {
		r.Append(i)
	}
	got := r.Snapshot(0)
	want := []int{8, 9, 10, 11, 12}
	if len(got) != len(want) {
		t.Fatalf("len: want %d got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("snapshot: want %v got %v", want, got)
		}
	}
}

func TestRing_SnapshotLimit(t *testing.T) {
	r := New[string](10)
	for _, s := range []string{"a", "b", "c", "d"} {
		r.Append(s)
	}
	got := r.Snapshot(2)
	if len(got) != 2 || got[0] != "c" || got[1] != "d" {
		t.Fatalf("want [c d], got %v", got)
	}
	if all := r.Snapshot(100); len(all) != 4 || all[0] != "a" {
		t.Fatalf("limit above len should return all, got %v", all)
	}
}

func TestRing_Clear(t *testing.T) {
	r := New[int](3)
	r.Append(1)
	r.Append(2)
	r.Clear()
	if r.Len() != 0 || len(r.Snapshot(0)) != 0 {
		t.Fatalf("expected empty ring after clear")
	}
	r.Append(7)
	if got := r.Snapshot(0); len(got) != 1 || got[0] != 7 {
		t.Fatalf("after clear+append: %v", got)
	}
}

func TestRing_ConcurrentAppend(t *testing.T) {
	r := New[int](100)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				r.Append(i)
				_ = r.Snapshot(10)
			}
		}()
	}
	wg.Wait()
	if r.Len() != r.Cap() {
		t.Fatalf("want full ring, got len=%d", r.Len())
	}
}
