package workq

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/magolch/plogd/pkg/logger"
)

var ErrScheduling = errors.New("queue unavailable or stopped")

// Item is one deferred write. Whoever builds it owns it until Submit returns
// nil; from then on the queue's worker is the sole owner.
type Item struct {
	TraceId  string
	Message  string
	Filepath string
}

func NewItem(message, filepath string) *Item {
	return &Item{
		TraceId:  uuid.NewString(),
		Message:  message,
		Filepath: filepath,
	}
}

type WriteFunc func(message, filepath string) error

type task struct {
	item *Item
	// drain marks a flush marker, closed by the worker when reached
	drain chan struct{}
}

// Queue runs exactly one worker over a channel whose capacity is fixed at
// creation, so submission never allocates and tasks run in submission order.
type Queue struct {
	c     chan *task
	write WriteFunc

	stopped     atomic.Bool
	done        chan struct{}
	destroyOnce sync.Once
}

func NewQueue(buffSize int, write WriteFunc) *Queue {
	if buffSize <= 0 {
		buffSize = 1
	}
	q := &Queue{
		c:     make(chan *task, buffSize),
		write: write,
		done:  make(chan struct{}),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		wg.Done()
		q.process()
	}()
	wg.Wait()

	return q
}

// Submit hands an item to the worker without blocking. On nil return the
// queue owns the item; any error leaves ownership with the caller.
func (q *Queue) Submit(it *Item) error {
	if it == nil || q.stopped.Load() {
		return ErrScheduling
	}
	select {
	case q.c <- &task{item: it}:
		return nil
	default:
		// full queue must not block the trigger context
		return ErrScheduling
	}
}

// Flush blocks until every item submitted before the call has been handled.
func (q *Queue) Flush() {
	marker := &task{drain: make(chan struct{})}
	select {
	case q.c <- marker:
	case <-q.done:
		return
	}
	select {
	case <-marker.drain:
	case <-q.done:
	}
}

// Destroy stops new submissions, drains in-flight work and waits for the
// worker to exit. Safe to call more than once.
func (q *Queue) Destroy() {
	q.destroyOnce.Do(func() {
		q.stopped.Store(true)
		select {
		case q.c <- nil:
		case <-q.done:
		}
		<-q.done
	})
}

func (q *Queue) process() {
	defer close(q.done)
	for {
		t := <-q.c
		if t == nil {
			q.drainRemainder()
			return
		}
		if t.drain != nil {
			close(t.drain)
			continue
		}
		q.handle(t.item)
	}
}

func (q *Queue) handle(it *Item) {
	if it.Message == "" || it.Filepath == "" {
		logger.Errorf("tid=%s,invalid work item, message or filepath missing", it.TraceId)
		return
	}
	if err := q.write(it.Message, it.Filepath); err != nil {
		logger.Errorf("tid=%s,failed to write message to file: %v", it.TraceId, err)
	}
}

// drainRemainder logs items a racing submitter may have slipped in behind the
// stop marker. They are dropped, never half-handled.
func (q *Queue) drainRemainder() {
	for {
		select {
		case t := <-q.c:
			if t == nil {
				continue
			}
			if t.drain != nil {
				close(t.drain)
				continue
			}
			logger.Warnf("tid=%s,dropping item queued during shutdown", t.item.TraceId)
		default:
			return
		}
	}
}
