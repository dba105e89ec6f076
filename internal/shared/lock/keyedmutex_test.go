package lock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()

	const iterations = 200
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				km.WithLock("8988228066612345678", func() {
					counter++
				})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 4*iterations, counter)
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := NewKeyedMutex()

	km.Lock("a")
	done := make(chan struct{})
	go func() {
		// Must not block behind key "a".
		km.WithLock("b", func() {})
		close(done)
	}()
	<-done
	km.Unlock("a")
}

func TestKeyedMutexReclaimsEntries(t *testing.T) {
	km := NewKeyedMutex()

	for i := 0; i < 100; i++ {
		km.WithLock("key", func() {})
	}

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.entries)
}
