package session

import "sync"

// Manager keeps at most one draft per user and serializes access to it.
// Different users' drafts are fully independent; events for the same user
// must not interleave draft reads and writes, so callers wrap each
// read-modify-write in Acquire/release.
type Manager struct {
	mu      sync.Mutex
	drafts  map[int64]*Draft
	locks   map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager constructs an empty in-memory Manager.
func NewManager() *Manager {
	return &Manager{
		drafts: make(map[int64]*Draft),
		locks:  make(map[int64]*userLock),
	}
}

// Acquire locks the given user's draft and returns the release function.
// Events for distinct users proceed in parallel.
func (m *Manager) Acquire(userID int64) func() {
	m.mu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &userLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, userID)
		}
		m.mu.Unlock()
	}
}

// Get returns a copy of the user's draft, if any.
func (m *Manager) Get(userID int64) (Draft, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[userID]
	if !ok {
		return Draft{}, false
	}
	return *d, true
}

// Put stores the draft for a user, silently replacing any prior one.
func (m *Manager) Put(userID int64, d Draft) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[userID] = &d
}

// Clear removes the user's draft.
func (m *Manager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, userID)
}

// InProgress reports whether the user has an active draft.
func (m *Manager) InProgress(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.drafts[userID]
	return ok
}
