package pagebitmap

import "testing"

func TestSetClearTest(t *testing.T) {
	var b Bitmap
	b.Init(40)

	if b.Test(5) {
		t.Fatal("expected bit 5 clear after Init")
	}
	b.Set(5)
	if !b.Test(5) {
		t.Fatal("expected bit 5 set")
	}
	b.Clear(5)
	if b.Test(5) {
		t.Fatal("expected bit 5 clear after Clear")
	}
}

func TestSetRangeClearRange(t *testing.T) {
	var b Bitmap
	b.Init(64)
	b.SetRange(10, 20)
	for i := 10; i < 30; i++ {
		if !b.Test(i) {
			t.Fatalf("expected bit %d set", i)
		}
	}
	if b.Test(9) || b.Test(30) {
		t.Fatal("range overran its bounds")
	}
	b.ClearRange(10, 20)
	for i := 10; i < 30; i++ {
		if b.Test(i) {
			t.Fatalf("expected bit %d clear", i)
		}
	}
}

func TestFindFreeRunBasic(t *testing.T) {
	var b Bitmap
	b.Init(16)
	b.SetRange(0, 4)
	idx := b.FindFreeRun(4)
	if idx != 4 {
		t.Fatalf("expected free run at 4, got %d", idx)
	}
}

func TestFindFreeRunCrossesWholeWord(t *testing.T) {
	var b Bitmap
	b.Init(96)
	b.SetRange(0, 32) // first word entirely occupied
	b.SetRange(40, 10)
	idx := b.FindFreeRun(8)
	if idx != 32 {
		t.Fatalf("expected free run at 32, got %d", idx)
	}
}

func TestFindFreeRunNotFound(t *testing.T) {
	var b Bitmap
	b.Init(10)
	b.SetRange(0, 10)
	if idx := b.FindFreeRun(1); idx != NotFound {
		t.Fatalf("expected NotFound, got %d", idx)
	}
}

func TestFindFreeRunZeroOrOversized(t *testing.T) {
	var b Bitmap
	b.Init(10)
	if idx := b.FindFreeRun(0); idx != NotFound {
		t.Fatalf("expected NotFound for count 0, got %d", idx)
	}
	if idx := b.FindFreeRun(11); idx != NotFound {
		t.Fatalf("expected NotFound for oversized count, got %d", idx)
	}
}

func TestCountSetCountClear(t *testing.T) {
	var b Bitmap
	b.Init(100)
	b.SetRange(0, 33)
	if got := b.CountSet(); got != 33 {
		t.Fatalf("CountSet: got %d want 33", got)
	}
	if got := b.CountClear(); got != 67 {
		t.Fatalf("CountClear: got %d want 67", got)
	}
}

func TestIndexOutOfRangePanics(t *testing.T) {
	var b Bitmap
	b.Init(4)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range index")
		}
	}()
	b.Set(4)
}

func TestReinitReusesBackingArray(t *testing.T) {
	var b Bitmap
	b.Init(1000)
	b.SetRange(0, 1000)
	b.Init(10)
	if got := b.CountSet(); got != 0 {
		t.Fatalf("expected fresh zero bitmap after re-Init, got %d set bits", got)
	}
}
