package register

import "sync"

// Manager hands out one session per lane.
type Manager struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager validates deps and returns an empty manager.
func NewManager(deps Deps) (*Manager, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &Manager{deps: deps, sessions: map[string]*Session{}}, nil
}

// Session returns the session of laneID, creating it on first use.
func (m *Manager) Session(laneID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[laneID]; ok {
		return s, nil
	}
	s, err := NewSession(laneID, m.deps)
	if err != nil {
		return nil, err
	}
	m.sessions[laneID] = s
	return s, nil
}

// Lanes lists the lanes with an open session.
func (m *Manager) Lanes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for lane := range m.sessions {
		out = append(out, lane)
	}
	return out
}
