package workflow

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_SerializesPerInstance(t *testing.T) {
	d := newDispatcher()

	var mu sync.Mutex

	order := make([]int, 0, 100)

	for i := range 100 {
		d.Submit("instance-1", func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}

	d.Wait()

	require.Len(t, order, 100)

	for i, got := range order {
		assert.Equal(t, i, got)
	}
}

func TestDispatcher_InstancesRunIndependently(t *testing.T) {
	d := newDispatcher()

	release := make(chan struct{})
	blockedStarted := make(chan struct{})

	d.Submit("blocked", func() {
		close(blockedStarted)
		<-release
	})

	<-blockedStarted

	done := make(chan struct{})

	d.Submit("free", func() {
		close(done)
	})

	// The free instance's job must finish while the blocked one still holds
	// its worker.
	<-done

	close(release)
	d.Wait()
}

func TestDispatcher_CoalescesQueuedDrives(t *testing.T) {
	d := newDispatcher()

	var runs atomic.Int32

	release := make(chan struct{})
	started := make(chan struct{})

	d.SubmitDrive("instance-1", func() {
		close(started)
		<-release
	})

	<-started

	// All of these arrive while the first drive is still running; exactly one
	// queued pass must cover them.
	for range 10 {
		d.SubmitDrive("instance-1", func() {
			runs.Add(1)
		})
	}

	close(release)
	d.Wait()

	assert.Equal(t, int32(1), runs.Load())
}

func TestDispatcher_DriveAfterDrainRunsAgain(t *testing.T) {
	d := newDispatcher()

	var runs atomic.Int32

	d.SubmitDrive("instance-1", func() { runs.Add(1) })
	d.Wait()

	d.SubmitDrive("instance-1", func() { runs.Add(1) })
	d.Wait()

	assert.Equal(t, int32(2), runs.Load())
}

func TestKeyedMutex_ExcludesSameKeyOnly(t *testing.T) {
	var k keyedMutex

	unlock := k.Lock("a")

	otherDone := make(chan struct{})

	go func() {
		defer close(otherDone)

		u := k.Lock("b")
		u()
	}()

	// A different key is never blocked.
	<-otherDone

	sameDone := make(chan struct{})

	go func() {
		defer close(sameDone)

		u := k.Lock("a")
		u()
	}()

	select {
	case <-sameDone:
		t.Fatal("second lock on the same key acquired while held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	<-sameDone
}
