package layout

import (
	"testing"

	"github.com/ryanbastic/go-dashboard/internal/widget"
)

func TestClampSize(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{1, 1, 1, 1},
		{8, 6, 8, 6},
		{0, 0, 1, 1},
		{-5, -5, 1, 1},
		{9, 7, 8, 6},
		{100, 3, 8, 3},
		{4, 100, 4, 6},
	}
	for _, tt := range tests {
		gotW, gotH := ClampSize(tt.w, tt.h)
		if gotW != tt.wantW || gotH != tt.wantH {
			t.Errorf("ClampSize(%d, %d) = (%d, %d), want (%d, %d)", tt.w, tt.h, gotW, gotH, tt.wantW, tt.wantH)
		}
	}
}

func TestClampSize_Idempotent(t *testing.T) {
	for w := -3; w <= 12; w++ {
		for h := -3; h <= 10; h++ {
			w1, h1 := ClampSize(w, h)
			w2, h2 := ClampSize(w1, h1)
			if w1 != w2 || h1 != h2 {
				t.Fatalf("ClampSize not idempotent at (%d, %d): (%d, %d) then (%d, %d)", w, h, w1, h1, w2, h2)
			}
		}
	}
}

func TestClampSize_InRangeIsIdentity(t *testing.T) {
	for w := MinWidth; w <= MaxWidth; w++ {
		for h := MinHeight; h <= MaxHeight; h++ {
			gotW, gotH := ClampSize(w, h)
			if gotW != w || gotH != h {
				t.Fatalf("ClampSize(%d, %d) = (%d, %d)", w, h, gotW, gotH)
			}
		}
	}
}

func TestApplyDirectionalResize_Directions(t *testing.T) {
	// 160px at sensitivity 1 over an 80px grid is two cells on each axis.
	tests := []struct {
		dir          Direction
		dx, dy       float64
		wantW, wantH int
	}{
		{East, 160, 160, 5, 3},
		{West, 160, 160, 1, 3},
		{South, 160, 160, 3, 5},
		{North, 160, 160, 3, 1},
		{SouthEast, 160, 160, 5, 5},
		{SouthWest, 160, 160, 1, 5},
		{NorthEast, 160, 160, 5, 1},
		{NorthWest, 160, 160, 1, 1},
		{West, -160, 0, 5, 3},
		{North, 0, -160, 3, 5},
	}
	for _, tt := range tests {
		gotW, gotH := ApplyDirectionalResize(tt.dir, tt.dx, tt.dy, 3, 3, 80, 1)
		if gotW != tt.wantW || gotH != tt.wantH {
			t.Errorf("%s: got (%d, %d), want (%d, %d)", tt.dir, gotW, gotH, tt.wantW, tt.wantH)
		}
	}
}

func TestApplyDirectionalResize_Rounding(t *testing.T) {
	// 160 * 0.8 / 80 = 1.6 rounds to 2; 80 * 0.8 / 80 = 0.8 rounds to 1.
	w, h := ApplyDirectionalResize(SouthEast, 160, 80, 1, 1, 80, 0.8)
	if w != 3 || h != 2 {
		t.Errorf("got (%d, %d), want (3, 2)", w, h)
	}
	// 30 * 0.8 / 80 = 0.3 rounds to 0.
	w, h = ApplyDirectionalResize(SouthEast, 30, 30, 2, 2, 80, 0.8)
	if w != 2 || h != 2 {
		t.Errorf("small delta: got (%d, %d), want (2, 2)", w, h)
	}
}

func TestApplyDirectionalResize_Clamps(t *testing.T) {
	w, h := ApplyDirectionalResize(SouthEast, 10000, 10000, 1, 1, 80, 1)
	if w != MaxWidth || h != MaxHeight {
		t.Errorf("got (%d, %d), want (%d, %d)", w, h, MaxWidth, MaxHeight)
	}
	w, h = ApplyDirectionalResize(NorthWest, 10000, 10000, 4, 4, 80, 1)
	if w != MinWidth || h != MinHeight {
		t.Errorf("got (%d, %d), want (%d, %d)", w, h, MinWidth, MinHeight)
	}
}

func TestApplyDirectionalResize_Deterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		w1, h1 := ApplyDirectionalResize(NorthEast, 123.4, -77.7, 2, 3, 80, 0.8)
		w2, h2 := ApplyDirectionalResize(NorthEast, 123.4, -77.7, 2, 3, 80, 0.8)
		if w1 != w2 || h1 != h2 {
			t.Fatalf("results differ: (%d, %d) vs (%d, %d)", w1, h1, w2, h2)
		}
	}
}

func TestApplyDirectionalResize_ZeroGridSize(t *testing.T) {
	w, h := ApplyDirectionalResize(SouthEast, 500, 500, 2, 2, 0, 1)
	if w != 2 || h != 2 {
		t.Errorf("got (%d, %d), want unchanged (2, 2)", w, h)
	}
}

func TestParseDirection(t *testing.T) {
	for _, s := range []string{"n", "s", "e", "w", "ne", "nw", "se", "sw"} {
		if _, err := ParseDirection(s); err != nil {
			t.Errorf("ParseDirection(%q): %v", s, err)
		}
	}
	if _, err := ParseDirection("up"); err == nil {
		t.Error("expected error for unknown direction")
	}
}

func TestResetLayout(t *testing.T) {
	var widgets []widget.Widget
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		widgets = append(widgets, widget.Widget{ID: id, Type: widget.TypeMemo, PositionX: 5, PositionY: 9})
	}

	for _, columns := range []int{1, 2, 3, 4, 7, 10} {
		got := ResetLayout(widgets, columns)
		if len(got) != len(widgets) {
			t.Fatalf("columns=%d: got %d widgets, want %d", columns, len(got), len(widgets))
		}
		for i, w := range got {
			if w.ID != widgets[i].ID {
				t.Errorf("columns=%d: order changed at %d: %s", columns, i, w.ID)
			}
			if w.PositionX != i%columns || w.PositionY != i/columns {
				t.Errorf("columns=%d: widget %d at (%d, %d), want (%d, %d)", columns, i, w.PositionX, w.PositionY, i%columns, i/columns)
			}
		}
	}

	if widgets[0].PositionX != 5 {
		t.Error("ResetLayout mutated its input")
	}
}

func TestResetLayout_NonPositiveColumns(t *testing.T) {
	widgets := []widget.Widget{{ID: "a"}, {ID: "b"}}
	got := ResetLayout(widgets, 0)
	if got[1].PositionX != 0 || got[1].PositionY != 1 {
		t.Errorf("expected single column layout, got (%d, %d)", got[1].PositionX, got[1].PositionY)
	}
}

func TestNormalize(t *testing.T) {
	w := widget.Widget{PositionX: -2, PositionY: 3, Width: 0, Height: 12}
	Normalize(&w)
	if w.PositionX != 0 || w.PositionY != 3 || w.Width != 1 || w.Height != 6 {
		t.Errorf("unexpected normalized widget: %+v", w)
	}
}
