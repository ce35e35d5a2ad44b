package keylock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := New()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("folio-1")
			counter++
			km.Unlock("folio-1")
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestKeyedMutex_IndependentKeysDoNotBlock(t *testing.T) {
	km := New()
	km.Lock("folio-1")
	defer km.Unlock("folio-1")

	done := make(chan struct{})
	go func() {
		km.Lock("folio-2")
		km.Unlock("folio-2")
		close(done)
	}()

	<-done // would deadlock if folio-2 waited on folio-1
}

func TestKeyedMutex_EntriesReleased(t *testing.T) {
	km := New()
	km.Lock("folio-1")
	km.Unlock("folio-1")

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.locks)
}
