package mpuguard

import "testing"

func TestFloorPow2(t *testing.T) {
	cases := map[uintptr]uintptr{
		0:    0,
		1:    1,
		2:    2,
		3:    2,
		1023: 512,
		1024: 1024,
		1025: 1024,
	}
	for in, want := range cases {
		if got := FloorPow2(in); got != want {
			t.Errorf("FloorPow2(%d): got %d want %d", in, got, want)
		}
	}
}

func TestIsPow2(t *testing.T) {
	for _, v := range []uintptr{1, 2, 4, 1024} {
		if !IsPow2(v) {
			t.Errorf("IsPow2(%d) = false, want true", v)
		}
	}
	for _, v := range []uintptr{0, 3, 5, 1023} {
		if IsPow2(v) {
			t.Errorf("IsPow2(%d) = true, want false", v)
		}
	}
}

func TestAlignDown(t *testing.T) {
	if got := AlignDown(1025, 1024); got != 1024 {
		t.Errorf("AlignDown(1025, 1024): got %d want 1024", got)
	}
	if got := AlignDown(2048, 1024); got != 2048 {
		t.Errorf("AlignDown(2048, 1024): got %d want 2048", got)
	}
}

func TestAlignDownPanicsOnNonPow2Alignment(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-power-of-two alignment")
		}
	}()
	AlignDown(100, 3)
}
