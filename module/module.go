package module

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"
	"github.com/magolch/plogd/conf"
	"github.com/magolch/plogd/pkg/dir"
	"github.com/magolch/plogd/pkg/logger"
	"github.com/magolch/plogd/store/sessions"
	"github.com/magolch/plogd/workq"
	"github.com/magolch/plogd/writer"
)

// Lifecycle states. The order is strict: a state is loaded exactly once,
// deactivated exactly once, and never revived after destroy.
const (
	StateUninitialized = "uninitialized"
	StateActive        = "active"
	StateDeactivating  = "deactivating"
	StateDestroyed     = "destroyed"
)

const (
	EventLoad    = "load"
	EventUnload  = "unload"
	EventDestroy = "destroy"
)

const (
	messageFormat = "Hello from kernel module (%d)\n"
	unloadMessage = "Module unloaded\n"
)

// State ties together the timer loop, the write queue, the write counter and
// the active flag. The timer goroutine and the queue worker only ever see the
// State they were started with, there is no package-global instance.
type State struct {
	queue *workq.Queue
	write workq.WriteFunc

	counter atomic.Uint32
	active  atomic.Bool

	life *fsm.FSM

	stopTimer  chan struct{}
	timerDone  chan struct{}
	unloadOnce sync.Once

	sess      *sessions.Store
	sessionId string

	sample *logger.Sampler
}

// Load validates the configured parameters, creates the write queue and arms
// the periodic timer with the first fire one period from now. Invalid
// parameters fail the load before any state is kept.
func Load(sess *sessions.Store) (*State, error) {
	return load(sess, writer.Write)
}

func load(sess *sessions.Store, write workq.WriteFunc) (*State, error) {
	filename := conf.Filename()
	period := conf.TimerPeriod()

	logger.Infof("initializing module, filename: %s, timer period: %d seconds", filename, period)

	if !dir.IsValidPath(filename) {
		return nil, fmt.Errorf("invalid filename parameter")
	}
	if !conf.ValidPeriod(period) {
		return nil, fmt.Errorf("timer period must be between %d and %d seconds",
			conf.MinPeriod, conf.MaxPeriod)
	}

	s := &State{
		write:     write,
		life:      newLifecycle(),
		stopTimer: make(chan struct{}),
		timerDone: make(chan struct{}),
		sess:      sess,
		sample:    logger.NewSampler(conf.LogSample),
	}
	s.queue = workq.NewQueue(conf.WorkerBuffSize, write)

	if sess != nil {
		id, err := sess.OpenSession(filename, period)
		if err != nil {
			logger.Warnf("session record failed: %v", err)
		} else {
			s.sessionId = id
		}
	}

	if err := s.life.Event(context.Background(), EventLoad); err != nil {
		s.queue.Destroy()
		return nil, err
	}
	s.active.Store(true)
	go s.run(time.Duration(period) * time.Second)

	logger.Infof("module initialized successfully")
	return s, nil
}

func newLifecycle() *fsm.FSM {
	return fsm.NewFSM(
		StateUninitialized,
		fsm.Events{
			{Name: EventLoad, Src: []string{StateUninitialized}, Dst: StateActive},
			{Name: EventUnload, Src: []string{StateActive}, Dst: StateDeactivating},
			{Name: EventDestroy, Src: []string{StateDeactivating}, Dst: StateDestroyed},
		},
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				logger.Debugf("lifecycle %s -> %s on %s", e.Src, e.Dst, e.Event)
			},
		},
	)
}

func (s *State) run(delay time.Duration) {
	defer close(s.timerDone)
	for {
		select {
		case <-s.stopTimer:
			return
		case <-time.After(delay):
			s.fire()
			period := conf.TimerPeriod()
			if !s.active.Load() || period <= 0 {
				return
			}
			delay = time.Duration(period) * time.Second
		}
	}
}

// fire runs one periodic cycle. Every failure is contained to this cycle,
// the caller rearms regardless.
func (s *State) fire() {
	if !s.active.Load() {
		logger.Warnf("timer fired after module deactivation")
		return
	}

	counter := s.counter.Add(1)
	if counter == 0 {
		// wraparound, zero is never emitted
		s.counter.CompareAndSwap(0, 1)
		counter = 1
	}

	filename := conf.Filename()
	if filename == "" {
		logger.Errorf("filename parameter is empty")
		return
	}

	item := workq.NewItem(fmt.Sprintf(messageFormat, counter), filename)
	if err := s.queue.Submit(item); err != nil {
		logger.Errorf("tid=%s,failed to schedule write %d: %v", item.TraceId, counter, err)
		return
	}
	if s.sample.Ok() {
		logger.Debugf("tid=%s,scheduled write %d to %s", item.TraceId, counter, filename)
	}
}

// Unload tears the module down synchronously: deactivate, cancel the timer,
// drain the queue, final best-effort write, close the session record. Calling
// it on a nil state or a second time is a no-op.
func (s *State) Unload() {
	if s == nil {
		logger.Warnf("module state is nil during exit")
		return
	}
	s.unloadOnce.Do(s.unload)
}

func (s *State) unload() {
	logger.Infof("removing module")

	totalWrites := s.counter.Load()

	// deactivate first: no new submits, no rearm from here on
	s.active.Store(false)
	if err := s.life.Event(context.Background(), EventUnload); err != nil {
		logger.Warnf("unload transition: %v", err)
	}

	// synchronous timer cancel, after this no fire is running or pending
	close(s.stopTimer)
	<-s.timerDone

	s.queue.Flush()
	s.queue.Destroy()

	if filename := conf.Filename(); dir.IsValidPath(filename) {
		if err := s.write(unloadMessage, filename); err != nil {
			logger.Errorf("final write failed: %v", err)
		}
	}

	if s.sess != nil && s.sessionId != "" {
		if err := s.sess.CloseSession(s.sessionId, totalWrites); err != nil {
			logger.Warnf("session close failed: %v", err)
		}
	}

	if err := s.life.Event(context.Background(), EventDestroy); err != nil {
		logger.Warnf("destroy transition: %v", err)
	}
	logger.Infof("module removed, total writes: %d", totalWrites)
}

// Lifecycle reports the current lifecycle state name.
func (s *State) Lifecycle() string {
	return s.life.Current()
}

// TotalWrites reports how many cycles have been counted so far.
func (s *State) TotalWrites() uint32 {
	return s.counter.Load()
}
