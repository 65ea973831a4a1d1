package parallel

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"testing"
)

func TestParallelizeCoversAllItems(t *testing.T) {
	tests := []struct {
		name  string
		items int
	}{
		{name: "zero items", items: 0},
		{name: "fewer items than cores", items: 3},
		{name: "many items", items: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			visited := make([]int32, tt.items)
			Parallelize(tt.items, func(start, end int) {
				for i := start; i < end; i++ {
					atomic.AddInt32(&visited[i], 1)
				}
			})

			for i, v := range visited {
				if v != 1 {
					t.Errorf("item %d visited %d times, want exactly once", i, v)
				}
			}
		})
	}
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	var calls int32
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		if start != 0 || end != 10 {
			t.Errorf("expected single range [0,10), got [%d,%d)", start, end)
		}
	})
	if calls != 1 {
		t.Errorf("expected 1 sequential call, got %d", calls)
	}
}

func TestWorkers(t *testing.T) {
	tests := []struct {
		nJobs int
		want  int
	}{
		{nJobs: 1, want: 1},
		{nJobs: 4, want: 4},
		{nJobs: 0, want: runtime.NumCPU()},
		{nJobs: -1, want: runtime.NumCPU()},
	}

	for _, tt := range tests {
		if got := Workers(tt.nJobs); got != tt.want {
			t.Errorf("Workers(%d) = %d, want %d", tt.nJobs, got, tt.want)
		}
	}
}

func TestForEachIndex(t *testing.T) {
	const items = 57
	visited := make([]int32, items)

	err := ForEachIndex(items, 4, func(i int) error {
		atomic.AddInt32(&visited[i], 1)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, v := range visited {
		if v != 1 {
			t.Errorf("index %d visited %d times, want exactly once", i, v)
		}
	}
}

func TestForEachIndexReportsError(t *testing.T) {
	wantErr := fmt.Errorf("boom at 7")
	var ran int32

	err := ForEachIndex(20, 2, func(i int) error {
		atomic.AddInt32(&ran, 1)
		if i == 7 {
			return wantErr
		}
		return nil
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if ran != 20 {
		t.Errorf("all items should run even after an error, ran %d of 20", ran)
	}
}
