package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/glebk/pomo-bot/internal/domain"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeRegistry captures scheduled callbacks so tests fire them by hand.
type fakeRegistry struct {
	timers map[string]*fakeTimer
}

type fakeTimer struct {
	delay time.Duration
	fn    func()
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{timers: make(map[string]*fakeTimer)}
}

func (r *fakeRegistry) Schedule(id string, delay time.Duration, fn func()) {
	r.timers[id] = &fakeTimer{delay: delay, fn: fn}
}

func (r *fakeRegistry) Cancel(id string) bool {
	if _, ok := r.timers[id]; !ok {
		return false
	}
	delete(r.timers, id)
	return true
}

// fire simulates expiry: the entry is removed before the callback runs,
// mirroring the real registry.
func (r *fakeRegistry) fire(id string) bool {
	t, ok := r.timers[id]
	if !ok {
		return false
	}
	delete(r.timers, id)
	t.fn()
	return true
}

func (r *fakeRegistry) delay(id string) (time.Duration, bool) {
	t, ok := r.timers[id]
	if !ok {
		return 0, false
	}
	return t.delay, true
}

func (r *fakeRegistry) size() int {
	return len(r.timers)
}

// fakeSessionRepo is an in-memory domain.SessionRepository. It hands out
// copies so schedulers observe only persisted state, like a real store.
type fakeSessionRepo struct {
	sessions  map[int64]*domain.Session
	updateErr error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[int64]*domain.Session)}
}

func copySession(s *domain.Session) *domain.Session {
	c := *s
	return &c
}

func (r *fakeSessionRepo) Create(session *domain.Session) error {
	r.sessions[session.UserID] = copySession(session)
	return nil
}

func (r *fakeSessionRepo) GetByUserID(userID int64) (*domain.Session, error) {
	s, ok := r.sessions[userID]
	if !ok {
		return nil, nil
	}
	return copySession(s), nil
}

func (r *fakeSessionRepo) GetActiveByUserID(userID int64) (*domain.Session, error) {
	s, ok := r.sessions[userID]
	if !ok || !s.IsActive {
		return nil, nil
	}
	return copySession(s), nil
}

func (r *fakeSessionRepo) GetAllActive() ([]*domain.Session, error) {
	var active []*domain.Session
	for _, s := range r.sessions {
		if s.IsActive {
			active = append(active, copySession(s))
		}
	}
	return active, nil
}

func (r *fakeSessionRepo) Update(session *domain.Session) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.sessions[session.UserID] = copySession(session)
	return nil
}

func (r *fakeSessionRepo) PurgeIdle(cutoff time.Time) (int64, error) {
	return 0, nil
}

// fakeGroupRepo is an in-memory domain.GroupSessionRepository.
type fakeGroupRepo struct {
	sessions  map[string]*domain.GroupSession
	updateErr error
}

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{sessions: make(map[string]*domain.GroupSession)}
}

func copyGroup(g *domain.GroupSession) *domain.GroupSession {
	c := *g
	c.Participants = append([]domain.Participant(nil), g.Participants...)
	if g.CompletedAt != nil {
		t := *g.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func (r *fakeGroupRepo) Create(session *domain.GroupSession) error {
	r.sessions[session.SessionID] = copyGroup(session)
	return nil
}

func (r *fakeGroupRepo) GetBySessionID(sessionID string) (*domain.GroupSession, error) {
	g, ok := r.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return copyGroup(g), nil
}

func (r *fakeGroupRepo) GetActiveByChatID(chatID int64) (*domain.GroupSession, error) {
	for _, g := range r.sessions {
		if g.ChatID == chatID && g.Status != domain.GroupStatusCompleted {
			return copyGroup(g), nil
		}
	}
	return nil, nil
}

func (r *fakeGroupRepo) GetActiveByParticipant(userID int64) (*domain.GroupSession, error) {
	for _, g := range r.sessions {
		if g.Status == domain.GroupStatusCompleted {
			continue
		}
		for _, p := range g.Participants {
			if p.UserID == userID && p.IsActive {
				return copyGroup(g), nil
			}
		}
	}
	return nil, nil
}

func (r *fakeGroupRepo) GetAllRunning() ([]*domain.GroupSession, error) {
	var running []*domain.GroupSession
	for _, g := range r.sessions {
		if g.Status != domain.GroupStatusCompleted {
			running = append(running, copyGroup(g))
		}
	}
	return running, nil
}

func (r *fakeGroupRepo) Update(session *domain.GroupSession) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.sessions[session.SessionID] = copyGroup(session)
	return nil
}

func (r *fakeGroupRepo) PurgeCompleted(cutoff time.Time) (int64, error) {
	return 0, nil
}

// fakeNotifier records delivered events in order.
type fakeNotifier struct {
	events []string
}

func (n *fakeNotifier) SoloPhaseStarted(s *domain.Session) {
	n.events = append(n.events, "solo-phase:"+string(s.Phase))
}

func (n *fakeNotifier) SoloCompleted(s *domain.Session) {
	n.events = append(n.events, "solo-completed")
}

func (n *fakeNotifier) GroupPhaseStarted(g *domain.GroupSession) {
	n.events = append(n.events, "group-phase:"+string(g.Phase))
}

func (n *fakeNotifier) GroupPhaseSkipped(g *domain.GroupSession, skipped domain.Phase) {
	n.events = append(n.events, "group-skipped:"+string(skipped))
}

func (n *fakeNotifier) GroupCompleted(g *domain.GroupSession) {
	n.events = append(n.events, "group-completed")
}

func (n *fakeNotifier) GroupEnded(g *domain.GroupSession) {
	n.events = append(n.events, "group-ended")
}

type soloRig struct {
	scheduler *SoloScheduler
	sessions  *fakeSessionRepo
	groups    *fakeGroupRepo
	timers    *fakeRegistry
	notifier  *fakeNotifier
	clock     *fakeClock
}

func newSoloRig() *soloRig {
	rig := &soloRig{
		sessions: newFakeSessionRepo(),
		groups:   newFakeGroupRepo(),
		timers:   newFakeRegistry(),
		notifier: &fakeNotifier{},
		clock:    newFakeClock(),
	}
	rig.scheduler = NewSoloScheduler(rig.sessions, rig.groups, rig.timers, zerolog.Nop())
	rig.scheduler.now = rig.clock.Now
	rig.scheduler.SetNotifier(rig.notifier)
	return rig
}

type groupRig struct {
	scheduler *GroupScheduler
	sessions  *fakeSessionRepo
	groups    *fakeGroupRepo
	timers    *fakeRegistry
	notifier  *fakeNotifier
	clock     *fakeClock
}

func newGroupRig() *groupRig {
	rig := &groupRig{
		sessions: newFakeSessionRepo(),
		groups:   newFakeGroupRepo(),
		timers:   newFakeRegistry(),
		notifier: &fakeNotifier{},
		clock:    newFakeClock(),
	}
	rig.scheduler = NewGroupScheduler(rig.groups, rig.sessions, rig.timers, zerolog.Nop())
	rig.scheduler.now = rig.clock.Now
	rig.scheduler.SetNotifier(rig.notifier)
	return rig
}
