package hub

import (
	"sync"
	"testing"
)

func TestHub_On_Emit_Order(t *testing.T) {
	h := NewHub[string, int]()
	var got []string
	h.On("a", func(v int) { got = append(got, "first") })
	h.On("a", func(v int) { got = append(got, "second") })
	h.On("b", func(v int) { got = append(got, "other") })

	if n := h.Emit("a", 1); n != 2 {
		t.Fatalf("expected 2 handlers, got %d", n)
	}
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestHub_Once_FiresOnce(t *testing.T) {
	h := NewHub[int, string]()
	calls := 0
	h.Once(1, func(string) { calls++ })
	h.Emit(1, "x")
	h.Emit(1, "y")
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if h.Len(1) != 0 {
		t.Fatalf("once handler not removed")
	}
}

func TestHub_Once_ReentrantEmit(t *testing.T) {
	h := NewHub[int, int]()
	calls := 0
	h.Once(1, func(v int) {
		calls++
		if v == 0 {
			h.Emit(1, 1)
		}
	})
	h.Emit(1, 0)
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestHub_Off(t *testing.T) {
	h := NewHub[string, int]()
	calls := 0
	id := h.On("k", func(int) { calls++ })
	if !h.Off("k", id) {
		t.Fatalf("expected handler to be removed")
	}
	if h.Off("k", id) {
		t.Fatalf("second Off should report false")
	}
	h.Emit("k", 0)
	if calls != 0 {
		t.Fatalf("removed handler ran")
	}
}

func TestHub_OffDuringEmit(t *testing.T) {
	h := NewHub[string, int]()
	var second Subscription
	ran := false
	h.On("k", func(int) { h.Off("k", second) })
	second = h.On("k", func(int) { ran = true })

	// The snapshot taken by Emit still includes the second handler.
	h.Emit("k", 0)
	if !ran {
		t.Fatalf("expected snapshot delivery")
	}
	ran = false
	h.Emit("k", 0)
	if ran {
		t.Fatalf("handler ran after Off")
	}
}

func TestHub_RemoveAll(t *testing.T) {
	h := NewHub[string, int]()
	h.On("a", func(int) {})
	h.Once("b", func(int) {})
	h.RemoveAll()
	if h.Len("a")+h.Len("b") != 0 {
		t.Fatalf("expected no handlers")
	}
}

func TestHub_PanicHandler(t *testing.T) {
	h := NewHub[string, int]()
	var recovered any
	h.SetPanicHandler(func(_ string, r any) { recovered = r })
	after := false
	h.On("k", func(int) { panic("boom") })
	h.On("k", func(int) { after = true })
	h.Emit("k", 0)
	if recovered != "boom" || !after {
		t.Fatalf("expected recovery and continued delivery, got %v %v", recovered, after)
	}
}

func TestHub_ConcurrentUse(t *testing.T) {
	h := NewHub[int, int]()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := h.On(i%2, func(int) {})
			h.Emit(i%2, i)
			h.Off(i%2, id)
		}(i)
	}
	wg.Wait()
	if h.Len(0)+h.Len(1) != 0 {
		t.Fatalf("expected all handlers removed")
	}
}
