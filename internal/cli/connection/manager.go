package connection

import (
	"sync"
	"time"

	"github.com/jmoanes1/phonebook/internal/core/domain"
)

// Status is the observed reachability of the remote api.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Connection is a point-in-time view of the remote api reachability.
type Connection struct {
	Server    string    `json:"server" yaml:"server"`
	Status    Status    `json:"status" yaml:"status"`
	Since     time.Time `json:"since,omitempty" yaml:"since,omitempty"`
	LastError string    `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// Manager tracks whether the remote api is reachable.
//
// A transport failure marks it offline, any HTTP response marks it online.
// Outcomes that never reached the network leave it unchanged.
type Manager struct {
	mu        sync.RWMutex
	server    string
	status    Status
	since     time.Time
	lastError string
	now       func() time.Time
}

// NewManager creates a manager for server in the unknown state.
func NewManager(server string) *Manager {
	return &Manager{
		server: server,
		status: StatusUnknown,
		now:    time.Now,
	}
}

// Watch subscribes the manager to every outcome of c.
func (m *Manager) Watch(c *HTTPClient) {
	m.mu.Lock()
	m.server = c.BaseURL()
	m.mu.Unlock()
	c.Observe(m.Report)
}

// Report records one call outcome.
func (m *Manager) Report(o Outcome) {
	var next Status
	switch {
	case o.Kind == domain.KindTransport:
		next = StatusOffline
	case o.Status != 0:
		next = StatusOnline
	default:
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if next != m.status {
		m.status = next
		m.since = m.now()
	}
	if next == StatusOffline && o.Err != nil {
		m.lastError = o.Err.Error()
	} else if next == StatusOnline {
		m.lastError = ""
	}
}

// Status returns the current status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Offline reports whether the last network outcome was a transport failure.
func (m *Manager) Offline() bool {
	return m.Status() == StatusOffline
}

// Current returns a snapshot of the connection.
func (m *Manager) Current() Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Connection{
		Server:    m.server,
		Status:    m.status,
		Since:     m.since,
		LastError: m.lastError,
	}
}
