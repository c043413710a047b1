package userlock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyed_SerializesSameKey(t *testing.T) {
	locks := New()

	const workers = 50
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locks.Lock(42)
			defer locks.Unlock(42)
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestKeyed_DifferentKeysIndependent(t *testing.T) {
	locks := New()
	locks.Lock(1)

	done := make(chan struct{})
	go func() {
		locks.Lock(2)
		locks.Unlock(2)
		close(done)
	}()

	// Занятый ключ 1 не блокирует ключ 2.
	<-done
	locks.Unlock(1)
}

func TestKeyed_EntryRemovedWhenUnused(t *testing.T) {
	locks := New()

	locks.Lock(42)
	locks.Unlock(42)

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.locks)
}
