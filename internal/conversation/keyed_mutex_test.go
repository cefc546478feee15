package conversation

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerialisesPerKey(t *testing.T) {
	km := NewKeyedMutex()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  = map[string]int{}
		overlap bool
	)
	for i := 0; i < 50; i++ {
		key := []string{"a", "b"}[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock(key)
			defer unlock()

			mu.Lock()
			active[key]++
			if active[key] > 1 {
				overlap = true
			}
			mu.Unlock()

			mu.Lock()
			active[key]--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if overlap {
		t.Error("two goroutines held the same key")
	}
	if n := km.Len(); n != 0 {
		t.Errorf("Len = %d after all unlocks, want 0", n)
	}
}
