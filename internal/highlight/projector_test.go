package highlight

import (
	"reflect"
	"testing"

	"github.com/agleyzer/lyricsync/internal/index"
	"github.com/agleyzer/lyricsync/internal/timing"
)

// createTestIndex builds four lines of two words each, one second per word.
func createTestIndex(t *testing.T) *index.Index {
	t.Helper()

	tm := &timing.Map{Duration: 8}
	start := 0.0
	for l := 0; l < 4; l++ {
		var words []timing.Word
		for w := 0; w < 2; w++ {
			words = append(words, timing.Word{Word: "w", StartTime: start, EndTime: start + 1})
			start++
		}
		tm.Lines = append(tm.Lines, timing.Line{Words: words})
	}

	idx, err := index.Build(tm)
	if err != nil {
		t.Fatalf("failed to build test index: %v", err)
	}
	return idx
}

func TestProject_UnitStates(t *testing.T) {
	idx := createTestIndex(t)

	p := Project(idx, 3)
	want := []UnitState{Sung, Sung, Sung, Active, Upcoming, Upcoming, Upcoming, Upcoming}
	if !reflect.DeepEqual(p.Units, want) {
		t.Errorf("Units = %v, want %v", p.Units, want)
	}
	if p.ActiveIndex != 3 || p.Complete {
		t.Errorf("ActiveIndex=%d Complete=%v, want 3/false", p.ActiveIndex, p.Complete)
	}
}

func TestProject_LineStates(t *testing.T) {
	idx := createTestIndex(t)

	tests := []struct {
		name   string
		active int
		want   []LineState
	}{
		{"first line", 0, []LineState{LineActive, LineAdjacent, LineNone, LineNone}},
		{"second line", 2, []LineState{LineAdjacent, LineActive, LineAdjacent, LineNone}},
		{"third line", 5, []LineState{LineNone, LineAdjacent, LineActive, LineAdjacent}},
		{"last line", 7, []LineState{LineNone, LineNone, LineAdjacent, LineActive}},
		{"nothing active", -1, []LineState{LineNone, LineNone, LineNone, LineNone}},
		{"complete", 8, []LineState{LineNone, LineNone, LineNone, LineNone}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Project(idx, tt.active)
			if !reflect.DeepEqual(p.Lines, tt.want) {
				t.Errorf("Lines = %v, want %v", p.Lines, tt.want)
			}
		})
	}
}

func TestProject_NoneActive(t *testing.T) {
	idx := createTestIndex(t)

	p := Project(idx, -1)
	for i, s := range p.Units {
		if s != Upcoming {
			t.Errorf("unit %d = %v, want upcoming", i, s)
		}
	}
	if p.ActiveLine() != -1 {
		t.Errorf("ActiveLine() = %d, want -1", p.ActiveLine())
	}
}

func TestProject_Complete(t *testing.T) {
	idx := createTestIndex(t)

	p := Project(idx, idx.Len())
	if !p.Complete {
		t.Error("expected Complete")
	}
	if p.ActiveIndex != -1 {
		t.Errorf("ActiveIndex = %d, want -1", p.ActiveIndex)
	}
	for i, s := range p.Units {
		if s != Sung {
			t.Errorf("unit %d = %v, want sung", i, s)
		}
	}
}

func TestProject_Idempotent(t *testing.T) {
	idx := createTestIndex(t)

	for active := -1; active <= idx.Len(); active++ {
		a, b := Project(idx, active), Project(idx, active)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("Project(%d) not idempotent: %+v vs %+v", active, a, b)
		}
	}
}

func TestProject_SingleLine(t *testing.T) {
	idx, err := index.Build(&timing.Map{Duration: 4, Lines: []timing.Line{
		{Words: []timing.Word{{Word: "O", StartTime: 0, EndTime: 2}, {Word: "say", StartTime: 2, EndTime: 4}}},
	}})
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	p := Project(idx, 1)
	if !reflect.DeepEqual(p.Units, []UnitState{Sung, Active}) {
		t.Errorf("Units = %v, want [sung active]", p.Units)
	}
	if !reflect.DeepEqual(p.Lines, []LineState{LineActive}) {
		t.Errorf("Lines = %v, want [active-line]", p.Lines)
	}
}

func TestStateStrings(t *testing.T) {
	if Sung.String() != "sung" || Active.String() != "active" || Upcoming.String() != "upcoming" {
		t.Error("unexpected unit state names")
	}
	if LineActive.String() != "active-line" || LineAdjacent.String() != "adjacent-line" || LineNone.String() != "none" {
		t.Error("unexpected line state names")
	}
}
