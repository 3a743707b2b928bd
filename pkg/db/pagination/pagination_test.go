package pagination

import (
	"math"
	"testing"
)

func TestSliceWindows(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	cases := []struct {
		name  string
		page  int
		limit int
		want  int
	}{
		{name: "first page", page: 1, limit: 2, want: 2},
		{name: "last partial page", page: 3, limit: 2, want: 1},
		{name: "past the end", page: 4, limit: 2, want: 0},
		{name: "zero page", page: 0, limit: 2, want: 0},
		{name: "zero limit", page: 1, limit: 0, want: 0},
		{name: "page overflowing offset", page: math.MaxInt64 / 50, limit: 100, want: 0},
		{name: "max page", page: math.MaxInt, limit: math.MaxInt, want: 0},
	}
	for _, tc := range cases {
		if got := Slice(items, tc.page, tc.limit); len(got) != tc.want {
			t.Fatalf("%s: expected %d items, got %v", tc.name, tc.want, got)
		}
	}
}

func TestOffsetIsCapped(t *testing.T) {
	if got := Offset(3, 10); got != 20 {
		t.Fatalf("expected offset 20, got %d", got)
	}
	if got := Offset(0, 10); got != 0 {
		t.Fatalf("expected offset 0 for page 0, got %d", got)
	}
	if got := Offset(math.MaxInt64/50, 100); got != MaxOffset {
		t.Fatalf("expected capped offset, got %d", got)
	}
	if got := (Pagination{Page: math.MaxInt, Limit: 250}).Offset(); got != MaxOffset {
		t.Fatalf("expected capped offset, got %d", got)
	}
}

func TestBuildPageInfo(t *testing.T) {
	info := BuildPageInfo(7, 3, 3)
	if info.TotalPages != 3 || info.HasNext || !info.HasPrev || info.CurrentPage != 3 {
		t.Fatalf("unexpected page info %+v", info)
	}
}
