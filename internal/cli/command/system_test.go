package command

import (
	"strings"
	"testing"

	"github.com/jmoanes1/phonebook/internal/core/domain"
	"github.com/jmoanes1/phonebook/internal/infra/buildinfo"
)

func TestStatus(t *testing.T) {
	h := newHarness(t)

	var view statusView
	decodeJSON(t, h.mustRun("-o", "json", "status").stdout, &view)
	if view.State != domain.StateAnonymous || view.Email != "" {
		t.Errorf("anonymous status = %+v", view)
	}
	if view.Server != h.api.URL || view.Store != "badger" || !view.Fallback {
		t.Errorf("status = %+v", view)
	}

	h.login("Ann", "ann@example.com")
	h.mustRun("contacts", "add", "Bob")

	view = statusView{}
	decodeJSON(t, h.mustRun("-o", "json", "status").stdout, &view)
	if view.State != domain.StateAuthenticated || view.Email != "ann@example.com" || view.Contacts != 1 {
		t.Errorf("logged in status = %+v", view)
	}
	if view.Connection != "online" {
		t.Errorf("connection = %q, want online", view.Connection)
	}
}

func TestStatus_RevokedToken(t *testing.T) {
	h := newHarness(t)
	h.login("Ann", "ann@example.com")
	h.api.RevokeTokens()

	var view statusView
	decodeJSON(t, h.mustRun("-o", "json", "status").stdout, &view)
	if view.State != domain.StateAnonymous || view.LastError == "" {
		t.Errorf("status after revoke = %+v", view)
	}
}

func TestStatus_Table(t *testing.T) {
	h := newHarness(t)
	h.login("Ann", "ann@example.com")

	res := h.mustRun("status", "--metrics")
	for _, want := range []string{"FIELD", "state", "authenticated", "ann@example.com", "phonebook_remote_requests_total"} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("status output missing %q:\n%s", want, res.stdout)
		}
	}
	if strings.Contains(res.stdout, h.config) {
		t.Errorf("config path shown without --wide")
	}

	res = h.mustRun("--wide", "status")
	if !strings.Contains(res.stdout, h.config) {
		t.Errorf("config path missing with --wide:\n%s", res.stdout)
	}
}

func TestStore(t *testing.T) {
	h := newHarness(t)
	h.login("Ann", "ann@example.com")

	res := h.mustRun("store", "stats")
	for _, want := range []string{"engine", "badger", "NAMESPACE", "KEYS"} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("stats output missing %q:\n%s", want, res.stdout)
		}
	}

	res = h.mustRun("store", "gc")
	if !strings.Contains(res.stdout, "Reclaimed") {
		t.Errorf("gc output = %q", res.stdout)
	}
}

func TestVersion(t *testing.T) {
	h := newHarness(t)

	var info buildinfo.Info
	decodeJSON(t, h.mustRun("-o", "json", "version").stdout, &info)
	if info.Product != buildinfo.Product || info.Version != buildinfo.Version {
		t.Errorf("version = %+v", info)
	}
}
