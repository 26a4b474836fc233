package verify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codewithmutahir/timeclock/internal/config"
	"github.com/codewithmutahir/timeclock/internal/detector"
)

// frameBuffer is the per-session frame queue. Small on purpose: stale
// frames are worthless, the session should always see recent ones.
const frameBuffer = 4

// tokenGrant is a one-time clock authorization minted on verification.
type tokenGrant struct {
	employeeID string
	expiresAt  time.Time
}

// Manager owns the live verification sessions and the one-time clock
// tokens they mint. At most one session exists per employee.
type Manager struct {
	cfg      *config.VerifyConfig
	guidance *config.GuidanceConfig
	detector detector.FaceDetector

	mu         sync.Mutex
	sessions   map[string]*Session
	byEmployee map[string]string
	tokens     map[string]tokenGrant

	now func() time.Time
}

// NewManager creates a session manager.
func NewManager(cfg *config.VerifyConfig, guidance *config.GuidanceConfig, det detector.FaceDetector) *Manager {
	return &Manager{
		cfg:        cfg,
		guidance:   guidance,
		detector:   det,
		sessions:   make(map[string]*Session),
		byEmployee: make(map[string]string),
		tokens:     make(map[string]tokenGrant),
		now:        time.Now,
	}
}

// CreateSession starts a verification session for the employee against the
// given enrolled descriptor. An existing session for the same employee is
// closed and replaced.
func (m *Manager) CreateSession(employeeID string, reference []float32) *Session {
	source := NewPushSource(frameBuffer)
	sess := NewSession(uuid.NewString(), employeeID, reference, source,
		m.detector, m.cfg, m.guidance, m.mintToken)

	m.mu.Lock()
	if oldID, ok := m.byEmployee[employeeID]; ok {
		if old := m.sessions[oldID]; old != nil {
			old.Close()
		}
		delete(m.sessions, oldID)
	}
	m.sessions[sess.ID] = sess
	m.byEmployee[employeeID] = sess.ID
	m.mu.Unlock()

	sess.Start()
	return sess
}

// GetSession returns a session by ID, or nil.
func (m *Manager) GetSession(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// CloseSession closes and removes a session. Returns false when the
// session does not exist.
func (m *Manager) CloseSession(id string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		if m.byEmployee[sess.EmployeeID] == id {
			delete(m.byEmployee, sess.EmployeeID)
		}
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	sess.Close()
	return true
}

// mintToken issues a one-time clock token for a verified employee.
func (m *Manager) mintToken(employeeID string) string {
	token := uuid.NewString()
	m.mu.Lock()
	m.tokens[token] = tokenGrant{
		employeeID: employeeID,
		expiresAt:  m.now().Add(m.cfg.TokenTTL),
	}
	m.mu.Unlock()
	return token
}

// ConsumeToken redeems a token for the given employee. Tokens are
// single-use: a successful redemption invalidates the token.
func (m *Manager) ConsumeToken(token, employeeID string) bool {
	if token == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	grant, ok := m.tokens[token]
	if !ok {
		return false
	}
	if m.now().After(grant.expiresAt) {
		delete(m.tokens, token)
		return false
	}
	if grant.employeeID != employeeID {
		return false
	}
	delete(m.tokens, token)
	return true
}

// Reap closes sessions past their TTL and drops expired tokens.
func (m *Manager) Reap() {
	now := m.now()

	m.mu.Lock()
	var expired []*Session
	for id, sess := range m.sessions {
		if now.Sub(sess.CreatedAt) > m.cfg.SessionTTL {
			delete(m.sessions, id)
			if m.byEmployee[sess.EmployeeID] == id {
				delete(m.byEmployee, sess.EmployeeID)
			}
			expired = append(expired, sess)
		}
	}
	for token, grant := range m.tokens {
		if now.After(grant.expiresAt) {
			delete(m.tokens, token)
		}
	}
	m.mu.Unlock()

	for _, sess := range expired {
		sess.Close()
	}
}

// Run reaps periodically until the context is cancelled.
func (m *Manager) Run(ctx context.Context) {
	interval := m.cfg.SessionTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Reap()
		}
	}
}
