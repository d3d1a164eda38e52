package event

import (
	"sync"
	"testing"
)

func TestEmitOrder(t *testing.T) {
	var e Emitter[int]
	var got []int
	e.On(func(v int) { got = append(got, v) })
	e.On(func(v int) { got = append(got, v*10) })

	e.Emit(1)
	e.Emit(2)

	want := []int{1, 10, 2, 20}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestOff(t *testing.T) {
	var e Emitter[string]
	calls := 0
	off := e.On(func(string) { calls++ })
	e.On(func(string) {})

	e.Emit("a")
	off()
	off()
	e.Emit("b")

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if e.Len() != 1 {
		t.Errorf("Len() = %d, want 1", e.Len())
	}
}

func TestHandlerMayUnsubscribeDuringEmit(t *testing.T) {
	var e Emitter[struct{}]
	var off func()
	calls := 0
	off = e.On(func(struct{}) {
		calls++
		off()
	})

	e.Emit(struct{}{})
	e.Emit(struct{}{})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestConcurrentEmit(t *testing.T) {
	var e Emitter[int]
	var mu sync.Mutex
	sum := 0
	e.On(func(v int) {
		mu.Lock()
		sum += v
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Emit(i)
			if i%10 == 0 {
				off := e.On(func(int) {})
				off()
			}
		}()
	}
	wg.Wait()

	if sum != 49*50/2 {
		t.Errorf("sum = %d, want %d", sum, 49*50/2)
	}
}
