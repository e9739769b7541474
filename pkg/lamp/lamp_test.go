package lamp

import (
	"testing"

	"v543/pkg/raspberry"
)

func TestToggle(t *testing.T) {
	chip := raspberry.NewEmuChip()
	out, err := chip.NewOutput(23, 0)
	if err != nil {
		t.Fatalf("could not request line: %+v", err)
	}

	var driven []int
	chip.Line(23).OnChange(func(v int) { driven = append(driven, v) })

	l := New("ready", out)
	for i := 0; i < 4; i++ {
		l.Toggle()
	}

	want := []int{0, 1, 0, 1}
	if len(driven) != len(want) {
		t.Fatalf("got=%v, want=%v", driven, want)
	}
	for i := range want {
		if driven[i] != want[i] {
			t.Fatalf("got=%v, want=%v", driven, want)
		}
	}
	if got := l.Level(); got != 0 {
		t.Fatalf("got=%d, want=0", got)
	}
}

func TestNilLamp(t *testing.T) {
	var l *Lamp
	l.Toggle()
	if l.Level() != 0 || l.Name() != "" {
		t.Fatalf("nil lamp must be inert")
	}

	l = New("scpi", nil)
	l.Toggle()
	if got := l.Level(); got != 1 {
		t.Fatalf("got=%d, want=1", got)
	}
}
