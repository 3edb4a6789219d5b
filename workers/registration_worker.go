package workers

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/camden-git/photocatalog/logging"
	"github.com/camden-git/photocatalog/metrics"
	"github.com/camden-git/photocatalog/models"
	"github.com/camden-git/photocatalog/realtime"
	"github.com/camden-git/photocatalog/services"
)

// GroupRegistrar is the part of the registration service the queue needs.
type GroupRegistrar interface {
	RegisterGroup(ctx context.Context, sessionID uuid.UUID, req services.GroupRequest, snap models.SettingsSnapshot) (services.GroupResult, error)
}

type RegistrationJob struct {
	SessionID uuid.UUID
	Request   services.GroupRequest
	Settings  models.SettingsSnapshot
}

func (j RegistrationJob) pendingKey() string {
	return fmt.Sprintf("%s:%s", j.SessionID, j.Request.MasterPath)
}

// RegistrationQueue registers file groups on a fixed pool of workers so
// HTTP handlers can return before the work is done.
type RegistrationQueue struct {
	JobQueue  chan RegistrationJob
	Registrar GroupRegistrar
	Wg        sync.WaitGroup
	StopChan  chan struct{}
	Pending   map[string]bool
	Mutex     sync.Mutex
	// Events receives one event per processed job. May be nil.
	Events *realtime.Hub

	inFlight sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	log      *zerolog.Logger
}

func NewRegistrationQueue(registrar GroupRegistrar, queueSize, numWorkers int) *RegistrationQueue {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &RegistrationQueue{
		JobQueue:  make(chan RegistrationJob, queueSize),
		Registrar: registrar,
		StopChan:  make(chan struct{}),
		Pending:   make(map[string]bool),
		ctx:       ctx,
		cancel:    cancel,
		log:       logging.Component("registration_queue"),
	}
	q.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go q.worker(i)
	}
	q.log.Info().Int("workers", numWorkers).Int("queue_size", queueSize).Msg("registration workers started")
	return q
}

func (q *RegistrationQueue) worker(id int) {
	defer q.Wg.Done()
	for {
		select {
		case job, ok := <-q.JobQueue:
			if !ok {
				return
			}
			metrics.RegistrationQueueDepth.Dec()
			q.process(id, job)
		case <-q.StopChan:
			q.log.Debug().Int("worker", id).Msg("registration worker stopping")
			return
		}
	}
}

func (q *RegistrationQueue) process(worker int, job RegistrationJob) {
	defer q.inFlight.Done()
	defer func() {
		q.Mutex.Lock()
		delete(q.Pending, job.pendingKey())
		q.Mutex.Unlock()
	}()

	sessionID := job.SessionID
	event := realtime.Event{Type: realtime.EventRegistration, SessionID: &sessionID, Path: job.Request.MasterPath}

	res, err := q.Registrar.RegisterGroup(q.ctx, job.SessionID, job.Request, job.Settings)
	if err != nil {
		q.log.Warn().Err(err).Int("worker", worker).
			Str("session", job.SessionID.String()).
			Str("path", job.Request.MasterPath).
			Msg("registration job rejected")
		event.Status = "rejected"
		event.Error = err.Error()
		q.Events.Publish(event)
		return
	}
	q.log.Debug().Int("worker", worker).Str("path", job.Request.MasterPath).Str("status", res.Status).Msg("registration job done")
	event.Status = res.Status
	event.Error = res.Error
	q.Events.Publish(event)
}

// QueueJob queues a group unless the same path is already pending for the
// session or the queue is full.
func (q *RegistrationQueue) QueueJob(job RegistrationJob) bool {
	key := job.pendingKey()

	q.Mutex.Lock()
	if q.Pending[key] {
		q.Mutex.Unlock()
		return false
	}
	q.Pending[key] = true
	q.Mutex.Unlock()

	q.inFlight.Add(1)
	select {
	case q.JobQueue <- job:
		metrics.RegistrationQueueDepth.Inc()
		return true
	default:
		q.inFlight.Done()
		q.log.Warn().Str("path", job.Request.MasterPath).Msg("registration queue full")
		q.Mutex.Lock()
		delete(q.Pending, key)
		q.Mutex.Unlock()
		return false
	}
}

// Wait blocks until every job queued so far has been processed.
func (q *RegistrationQueue) Wait() {
	q.inFlight.Wait()
}

// Stop ends the workers. Jobs still in the channel are dropped and released
// so Wait returns.
func (q *RegistrationQueue) Stop() {
	q.log.Info().Msg("stopping registration workers")
	q.cancel()
	close(q.StopChan)
	q.Wg.Wait()

	dropped := 0
	for {
		select {
		case job := <-q.JobQueue:
			metrics.RegistrationQueueDepth.Dec()
			q.Mutex.Lock()
			delete(q.Pending, job.pendingKey())
			q.Mutex.Unlock()
			q.inFlight.Done()
			dropped++
		default:
			if dropped > 0 {
				q.log.Warn().Int("dropped", dropped).Msg("registration jobs dropped on shutdown")
			}
			return
		}
	}
}
