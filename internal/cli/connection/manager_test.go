package connection

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jmoanes1/phonebook/internal/core/domain"
	"github.com/jmoanes1/phonebook/internal/tests/fakeapi"
)

func TestNewManager(t *testing.T) {
	m := NewManager("http://localhost:3000")
	if m.Status() != StatusUnknown {
		t.Errorf("Status() = %q, want unknown", m.Status())
	}
	if m.Offline() {
		t.Error("new manager should not be offline")
	}
	if c := m.Current(); c.Server != "http://localhost:3000" || !c.Since.IsZero() {
		t.Errorf("Current() = %+v", c)
	}
}

func TestManager_Report(t *testing.T) {
	transportErr := domain.ErrTransport.WithCause(errors.New("dial tcp: refused"))

	tests := []struct {
		name     string
		outcomes []Outcome
		want     Status
	}{
		{
			name:     "success is online",
			outcomes: []Outcome{{Status: 200}},
			want:     StatusOnline,
		},
		{
			name:     "http error is online",
			outcomes: []Outcome{{Status: 500, Kind: domain.KindServer}},
			want:     StatusOnline,
		},
		{
			name:     "transport is offline",
			outcomes: []Outcome{{Status: 200}, {Kind: domain.KindTransport, Err: transportErr}},
			want:     StatusOffline,
		},
		{
			name:     "recovers",
			outcomes: []Outcome{{Kind: domain.KindTransport, Err: transportErr}, {Status: 401, Kind: domain.KindAuth}},
			want:     StatusOnline,
		},
		{
			name:     "local failure leaves status",
			outcomes: []Outcome{{Kind: domain.KindTransport, Err: transportErr}, {Kind: domain.KindStorage}},
			want:     StatusOffline,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("srv")
			for _, o := range tt.outcomes {
				m.Report(o)
			}
			if m.Status() != tt.want {
				t.Errorf("Status() = %q, want %q", m.Status(), tt.want)
			}
			if tt.want == StatusOffline && m.Current().LastError == "" {
				t.Error("offline should record the last error")
			}
			if tt.want == StatusOnline && m.Current().LastError != "" {
				t.Errorf("online should clear the last error, got %q", m.Current().LastError)
			}
		})
	}
}

func TestManager_SinceOnlyOnChange(t *testing.T) {
	m := NewManager("srv")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.Report(Outcome{Status: 200})
	first := m.Current().Since

	now = now.Add(time.Minute)
	m.Report(Outcome{Status: 200})
	if !m.Current().Since.Equal(first) {
		t.Error("Since should not move while the status is unchanged")
	}

	m.Report(Outcome{Kind: domain.KindTransport})
	if !m.Current().Since.Equal(now) {
		t.Errorf("Since = %v, want %v", m.Current().Since, now)
	}
}

func TestManager_Watch(t *testing.T) {
	srv := fakeapi.New()
	defer srv.Close()

	client := NewHTTPClient(srv.URL, Options{})
	m := NewManager("")
	m.Watch(client)

	if m.Current().Server != client.BaseURL() {
		t.Errorf("Server = %q, want %q", m.Current().Server, client.BaseURL())
	}

	_ = client.Do(context.Background(), http.MethodGet, "/contacts", nil, nil)
	if m.Status() != StatusOnline {
		t.Errorf("after 401 Status() = %q, want online", m.Status())
	}

	srv.SetDown(true)
	_ = client.Do(context.Background(), http.MethodGet, "/contacts", nil, nil)
	if !m.Offline() {
		t.Errorf("after drop Status() = %q, want offline", m.Status())
	}
}
