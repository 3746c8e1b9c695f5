package session

import (
	"context"
	"testing"
	"time"
)

func TestDispatcher_RunsInPushOrder(t *testing.T) {
	d := newDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan int, 100)
	block := make(chan struct{})
	d.push(func() { <-block })
	for i := 0; i < 100; i++ {
		d.push(func() { got <- i })
	}
	go d.run(ctx)
	close(block)

	for want := 0; want < 100; want++ {
		select {
		case v := <-got:
			if v != want {
				t.Fatalf("expected %d, got %d", want, v)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out at %d", want)
		}
	}
}

func TestDispatcher_StopsOnCancel(t *testing.T) {
	d := newDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.run(ctx)
		close(done)
	}()

	ran := make(chan struct{}, 1)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not return")
	}
	d.push(func() { ran <- struct{}{} })
	if len(ran) != 0 {
		t.Fatal("callback ran after cancel")
	}
}
