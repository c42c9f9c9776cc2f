package application

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerialisesPerKey(t *testing.T) {
	t.Parallel()

	locks := newKeyedMutex()
	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("series-1")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("expected 50 increments, got %d", counter)
	}
	if locks.size() != 0 {
		t.Fatalf("expected all keys to be released, got %d", locks.size())
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	t.Parallel()

	locks := newKeyedMutex()
	unlockA := locks.Lock("a")
	unlockB := locks.Lock("b")
	if locks.size() != 2 {
		t.Fatalf("expected two held keys, got %d", locks.size())
	}
	unlockA()
	unlockB()
	if locks.size() != 0 {
		t.Fatalf("expected keys to be released")
	}
}
