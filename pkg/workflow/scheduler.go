package workflow

import "sync"

// dispatcher owns one FIFO job queue per instance id. Jobs for a single
// instance never run concurrently; queues for distinct instances run in
// parallel. A queue exists exactly while its worker goroutine is alive.
type dispatcher struct {
	mu     sync.Mutex
	queues map[string]*instanceQueue
	wg     sync.WaitGroup
}

type job func()

type instanceQueue struct {
	jobs         []job
	pendingDrive bool
}

func newDispatcher() *dispatcher {
	return &dispatcher{queues: make(map[string]*instanceQueue)}
}

// Submit queues fn for the instance and starts a worker if none is running.
// The caller returns before fn executes.
func (d *dispatcher) Submit(instanceID string, fn job) {
	d.submit(instanceID, fn, false)
}

// SubmitDrive queues a drive pass, coalescing with a drive already waiting in
// the queue: one queued pass covers any number of stimuli that arrived while
// the previous pass ran.
func (d *dispatcher) SubmitDrive(instanceID string, fn job) {
	d.submit(instanceID, fn, true)
}

func (d *dispatcher) submit(instanceID string, fn job, drive bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q, running := d.queues[instanceID]
	if !running {
		q = &instanceQueue{}
		d.queues[instanceID] = q
	}

	if drive {
		if q.pendingDrive {
			return
		}

		q.pendingDrive = true
	}

	q.jobs = append(q.jobs, func() {
		if drive {
			d.mu.Lock()
			q.pendingDrive = false
			d.mu.Unlock()
		}

		fn()
	})

	if !running {
		d.wg.Add(1)
		go d.run(instanceID, q)
	}
}

func (d *dispatcher) run(instanceID string, q *instanceQueue) {
	defer d.wg.Done()

	for {
		d.mu.Lock()

		if len(q.jobs) == 0 {
			delete(d.queues, instanceID)
			d.mu.Unlock()

			return
		}

		fn := q.jobs[0]
		q.jobs = q.jobs[1:]
		d.mu.Unlock()

		fn()
	}
}

// Wait blocks until every queue has drained. Used on shutdown and by tests.
func (d *dispatcher) Wait() {
	d.wg.Wait()
}

// keyedMutex hands out one mutex per instance id so cross-entry-point
// mutations of one instance serialize with its in-flight loop pass.
type keyedMutex struct {
	locks sync.Map
}

func (k *keyedMutex) Lock(id string) func() {
	value, _ := k.locks.LoadOrStore(id, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()

	return mu.Unlock
}

func (k *keyedMutex) Forget(id string) {
	k.locks.Delete(id)
}
