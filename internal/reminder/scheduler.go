package reminder

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/notepid/twilight_arcade/internal/transport"
)

// Reward credited by the session layer for setting a reminder.
const Reward = 3

// Scheduler arms one timer per pending reminder. Delivery is best effort: a
// failed delivery is logged and the reminder stays pending with no retry.
// Timers do not survive a restart; Resume re-arms them from the database.
type Scheduler struct {
	repo     *Repo
	renderer transport.Renderer
	now      func() time.Time

	mu      sync.Mutex
	armed   map[int64]bool
	wg      sync.WaitGroup
	stop    chan struct{}
	stopped bool
}

// NewScheduler creates a scheduler delivering through renderer.
func NewScheduler(repo *Repo, renderer transport.Renderer) *Scheduler {
	return &Scheduler{
		repo:     repo,
		renderer: renderer,
		now:      time.Now,
		armed:    make(map[int64]bool),
		stop:     make(chan struct{}),
	}
}

// SetClock overrides the time source used for fire-at stamps.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Schedule persists a pending reminder and arms its timer.
func (s *Scheduler) Schedule(ctx context.Context, userID, channel int64, text string, delay time.Duration) (*Reminder, error) {
	if delay < 0 {
		return nil, fmt.Errorf("negative reminder delay %v", delay)
	}
	now := s.now()
	rem := &Reminder{
		UserID:    userID,
		ChannelID: channel,
		Text:      text,
		FireAt:    now.Add(delay),
		CreatedAt: now,
	}
	if err := s.repo.Insert(ctx, rem); err != nil {
		return nil, err
	}
	s.arm(rem, delay)
	return rem, nil
}

// Resume arms a timer for every pending reminder in the database that is not
// already armed. Overdue reminders fire immediately.
func (s *Scheduler) Resume(ctx context.Context) (int, error) {
	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	n := 0
	for _, rem := range pending {
		delay := rem.FireAt.Sub(now)
		if delay < 0 {
			delay = 0
		}
		if s.arm(rem, delay) {
			n++
		}
	}
	return n, nil
}

func (s *Scheduler) arm(rem *Reminder, delay time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.armed[rem.ID] {
		return false
	}
	s.armed[rem.ID] = true
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.armed, rem.ID)
			s.mu.Unlock()
		}()

		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			s.fire(rem)
		case <-s.stop:
		}
	}()
	return true
}

func (s *Scheduler) fire(rem *Reminder) {
	ctx := context.Background()
	msg := transport.Notice("Reminder\n\n%s", rem.Text)
	if err := s.renderer.Deliver(ctx, rem.ChannelID, msg); err != nil {
		log.Printf("Reminder %d delivery to channel %d failed: %v", rem.ID, rem.ChannelID, err)
		return
	}
	if _, err := s.repo.MarkSent(ctx, rem.ID); err != nil {
		log.Printf("Reminder %d delivered but not marked sent: %v", rem.ID, err)
		return
	}
	log.Printf("Reminder %d delivered to channel %d", rem.ID, rem.ChannelID)
}

// Pending lists a user's undelivered reminders, soonest first.
func (s *Scheduler) Pending(ctx context.Context, userID int64) ([]*Reminder, error) {
	return s.repo.ListPendingForUser(ctx, userID)
}

// Armed returns how many timers are waiting.
func (s *Scheduler) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.armed)
}

// Wait blocks until every armed timer has fired.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Stop abandons waiting timers and waits for deliveries in progress.
// Abandoned reminders stay pending for the next Resume.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.stop)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
