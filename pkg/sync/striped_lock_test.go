package sync

import (
	"fmt"
	base "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStripedLock_HappyPath(t *testing.T) {
	workerCount := 256
	operationCount := 1000

	l := NewStripedLock(4)

	var workerWg base.WaitGroup
	startChan := make(chan struct{})
	data := make([]int, workerCount)

	for i := 0; i < workerCount; i++ {
		workerWg.Add(1)

		go func(workerID int) {
			defer workerWg.Done()

			var opWg base.WaitGroup
			key := []byte(fmt.Sprintf("worker%d", workerID))
			for j := 0; j < operationCount; j++ {
				opWg.Add(1)

				go func() {
					defer opWg.Done()

					<-startChan

					mu := l.Get(key)
					mu.Lock()
					data[workerID]++
					mu.Unlock()
				}()
			}
			opWg.Wait()
		}(i)
	}

	close(startChan)
	workerWg.Wait()

	for _, val := range data {
		assert.EqualValues(t, operationCount, val)
	}
}

func TestStripedLock_LockAllOverlappingSets(t *testing.T) {
	l := NewStripedLock(8)

	keys := make([][]byte, 16)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("account%d", i))
	}

	var wg base.WaitGroup
	counters := make([]int, len(keys))

	// Each worker locks a window of keys in a different order. Without a
	// global acquisition order this would deadlock.
	for worker := 0; worker < 32; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			for iteration := 0; iteration < 200; iteration++ {
				var writable [][]byte
				var indexes []int
				for j := 0; j < 4; j++ {
					idx := (worker + j*3) % len(keys)
					if worker%2 == 0 {
						idx = (worker + (3-j)*3) % len(keys)
					}
					writable = append(writable, keys[idx])
					indexes = append(indexes, idx)
				}

				unlock := l.LockAll(writable, [][]byte{keys[(worker+1)%len(keys)]})
				for _, idx := range indexes {
					counters[idx]++
				}
				unlock()
				unlock()
			}
		}(worker)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("timed out waiting for workers")
	}

	var total int
	for _, c := range counters {
		total += c
	}
	assert.Equal(t, 32*200*4, total)
}

func TestStripedLock_ReadersShareStripe(t *testing.T) {
	l := NewStripedLock(1)
	key := []byte("shared")

	unlockFirst := l.LockAll(nil, [][]byte{key})
	defer unlockFirst()

	acquired := make(chan struct{})
	go func() {
		unlock := l.LockAll(nil, [][]byte{key, []byte("other")})
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("second reader blocked")
	}
}

func TestStripedLock_WriterExcludesReader(t *testing.T) {
	l := NewStripedLock(1)

	unlock := l.LockAll([][]byte{[]byte("a")}, [][]byte{[]byte("b")})

	acquired := make(chan struct{})
	go func() {
		unlock := l.LockAll(nil, [][]byte{[]byte("c")})
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("reader acquired a stripe held for writing")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	<-acquired
}
