package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoanes1/phonebook/internal/cli/connection"
	"github.com/jmoanes1/phonebook/internal/core/domain"
	"github.com/jmoanes1/phonebook/internal/storage"
	"github.com/jmoanes1/phonebook/internal/storage/memory"
	"github.com/jmoanes1/phonebook/internal/telemetry/logger"
	"github.com/jmoanes1/phonebook/internal/telemetry/metric"
	"github.com/jmoanes1/phonebook/internal/tests/fakeapi"
)

// env is one fake remote api and one local store shared by every
// Phonebook opened on it, so opening again simulates a process restart.
type env struct {
	t     *testing.T
	api   *fakeapi.Server
	store *storage.Local
	reg   *metric.Registry
}

func newEnv(t *testing.T) *env {
	t.Helper()
	api := fakeapi.New()
	t.Cleanup(api.Close)

	store, err := storage.NewLocal(context.Background(), memory.New(), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return &env{t: t, api: api, store: store, reg: metric.NewRegistry()}
}

func (e *env) open(opts Options) *Phonebook {
	e.t.Helper()
	client := connection.NewHTTPClient(e.api.URL, connection.Options{Timeout: 2 * time.Second})
	if opts.Recorder == nil {
		opts.Recorder = e.reg
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	pb, err := New(context.Background(), client, e.store, opts)
	if err != nil {
		e.t.Fatalf("New failed: %v", err)
	}
	return pb
}

// start opens a Phonebook and runs Start.
func (e *env) start(opts Options) *Phonebook {
	e.t.Helper()
	pb := e.open(opts)
	if err := pb.Start(context.Background()); err != nil {
		e.t.Fatalf("Start failed: %v", err)
	}
	return pb
}

func ids(list domain.ContactList) []string {
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.ID
	}
	return out
}

func sameIDs(a, b domain.ContactList) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

func mustLogin(t *testing.T, pb *Phonebook, email, password string) domain.User {
	t.Helper()
	u, err := pb.Login(context.Background(), email, password)
	if err != nil {
		t.Fatalf("Login(%s) failed: %v", email, err)
	}
	return u
}

func TestPhonebook_AddContact(t *testing.T) {
	e := newEnv(t)
	e.api.Seed("Ann", "ann@x.com", "pw123456")
	pb := e.start(Options{})
	mustLogin(t, pb, "ann@x.com", "pw123456")
	ctx := context.Background()

	tests := []struct {
		name    string
		number  string
		wantErr *domain.DomainError
	}{
		{"Bob", "555-1234", nil},
		{"  Carol  ", "555-0000", nil},
		{"bob", "555-9999", domain.ErrContactExists},
		{" CAROL", "1", domain.ErrContactExists},
		{"   ", "1", domain.ErrContactNameRequired},
		{"", "1", domain.ErrContactNameRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := pb.Contacts("")
			c, err := pb.AddContact(ctx, tt.name, tt.number)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("AddContact err = %v, want %v", err, tt.wantErr)
				}
				if !domain.IsKind(err, domain.KindValidation) {
					t.Errorf("kind = %s, want validation", domain.KindOf(err))
				}
				if after := pb.Contacts(""); !sameIDs(before, after) {
					t.Errorf("collection changed on error: %v -> %v", ids(before), ids(after))
				}
				return
			}

			if err != nil {
				t.Fatalf("AddContact failed: %v", err)
			}
			after := pb.Contacts("")
			if len(after) != len(before)+1 {
				t.Fatalf("len = %d, want %d", len(after), len(before)+1)
			}
			last := after[len(after)-1]
			if last.ID != c.ID || last.Name != c.Name || last.Number != tt.number {
				t.Errorf("appended %+v, returned %+v", last, c)
			}
		})
	}

	if got := e.api.Contacts("ann@x.com"); len(got) != 2 || got[1].Name != "Carol" {
		t.Errorf("server contacts = %+v", got)
	}
}

func TestPhonebook_DeleteContact(t *testing.T) {
	e := newEnv(t)
	e.api.Seed("Ann", "ann@x.com", "pw123456")
	pb := e.start(Options{})
	mustLogin(t, pb, "ann@x.com", "pw123456")
	ctx := context.Background()

	for _, name := range []string{"Bob", "Carol", "Dan"} {
		if _, err := pb.AddContact(ctx, name, "1"); err != nil {
			t.Fatal(err)
		}
	}
	before := pb.Contacts("")
	target := before[1].ID

	if err := pb.DeleteContact(ctx, target); err != nil {
		t.Fatalf("DeleteContact failed: %v", err)
	}
	after := pb.Contacts("")
	if len(after) != len(before)-1 || after.IndexOf(target) != -1 {
		t.Fatalf("after delete: %v", ids(after))
	}

	err := pb.DeleteContact(ctx, target)
	if !errors.Is(err, domain.ErrContactNotFound) || !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("second delete err = %v, want ErrContactNotFound", err)
	}
	if got := pb.Contacts(""); !sameIDs(got, after) {
		t.Errorf("absent delete mutated: %v -> %v", ids(after), ids(got))
	}
}

func TestPhonebook_AddThenDeleteRestores(t *testing.T) {
	for _, offline := range []bool{false, true} {
		name := "online"
		if offline {
			name = "offline"
		}
		t.Run(name, func(t *testing.T) {
			e := newEnv(t)
			e.api.Seed("Ann", "ann@x.com", "pw123456")
			pb := e.start(Options{})
			mustLogin(t, pb, "ann@x.com", "pw123456")
			ctx := context.Background()

			if _, err := pb.AddContact(ctx, "Alice", "1"); err != nil {
				t.Fatal(err)
			}
			e.api.SetDown(offline)
			before := pb.Contacts("")

			c, err := pb.AddContact(ctx, "Bob", "555-1234")
			if err != nil {
				t.Fatalf("AddContact failed: %v", err)
			}
			if c.IsLocal() != offline {
				t.Errorf("id %q local = %v, want %v", c.ID, c.IsLocal(), offline)
			}
			if err := pb.DeleteContact(ctx, c.ID); err != nil {
				t.Fatalf("DeleteContact failed: %v", err)
			}

			after := pb.Contacts("")
			if !sameIDs(before, after) {
				t.Errorf("collection = %v, want %v", ids(after), ids(before))
			}
		})
	}
}

func TestPhonebook_LoginLogoutRefresh(t *testing.T) {
	e := newEnv(t)
	e.api.Seed("Ann", "ann@x.com", "pw123456")
	ctx := context.Background()

	pb := e.start(Options{})
	mustLogin(t, pb, "ann@x.com", "pw123456")
	if _, err := pb.AddContact(ctx, "Bob", "1"); err != nil {
		t.Fatal(err)
	}
	if err := pb.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if s := pb.Session(); s.State() != domain.StateAnonymous || s.Token != "" {
		t.Errorf("after logout session = %+v", s)
	}
	if n := len(pb.Contacts("")); n != 0 {
		t.Errorf("contacts after logout = %d, want 0", n)
	}
	if cached, _ := e.store.LoadContacts(ctx); len(cached) != 0 {
		t.Errorf("cached contacts after logout = %d, want 0", len(cached))
	}

	requests := e.api.Requests()
	restarted := e.start(Options{})
	if s := restarted.Session(); s.State() != domain.StateAnonymous || s.Token != "" {
		t.Errorf("after restart session = %+v, want anonymous", s)
	}
	if got := e.api.Requests(); got != requests {
		t.Errorf("refresh without token made %d requests", got-requests)
	}
}

func TestPhonebook_RefreshOfflineKeepsSession(t *testing.T) {
	e := newEnv(t)
	e.api.Seed("Ann", "ann@x.com", "pw123456")
	ctx := context.Background()

	pb := e.start(Options{})
	ann := mustLogin(t, pb, "ann@x.com", "pw123456")
	if _, err := pb.AddContact(ctx, "Bob", "555-1234"); err != nil {
		t.Fatal(err)
	}
	token := pb.Session().Token

	e.api.SetDown(true)
	restarted := e.start(Options{})

	s := restarted.Session()
	if s.State() != domain.StateAuthenticated {
		t.Fatalf("state = %s, want authenticated", s.State())
	}
	if s.User != ann || s.Token != token {
		t.Errorf("session = %+v, want user %+v with the persisted token", s, ann)
	}
	if got := restarted.Contacts(""); len(got) != 1 || got[0].Name != "Bob" {
		t.Errorf("contacts from cache = %+v", got)
	}
}

func TestPhonebook_StartListFailureKeepsSession(t *testing.T) {
	e := newEnv(t)
	e.api.Seed("Ann", "ann@x.com", "pw123456")
	ctx := context.Background()

	pb := e.start(Options{})
	mustLogin(t, pb, "ann@x.com", "pw123456")
	bob, err := pb.AddContact(ctx, "Bob", "1")
	if err != nil {
		t.Fatal(err)
	}

	e.api.Force("GET", "/contacts", 500)
	restarted := e.open(Options{})
	if err := restarted.Start(ctx); err != nil {
		t.Fatalf("Start err = %v, want nil", err)
	}
	if s := restarted.Session(); s.State() != domain.StateAuthenticated {
		t.Fatalf("state = %s, want authenticated", s.State())
	}
	if restarted.Synchronizer().Loaded() {
		t.Error("Loaded() = true after a failed list")
	}

	if _, err := restarted.SyncContacts(ctx); !domain.IsKind(err, domain.KindServer) {
		t.Errorf("SyncContacts err = %v, want server", err)
	}
	if err := restarted.DeleteContact(ctx, bob.ID); err != nil {
		t.Fatalf("DeleteContact failed: %v", err)
	}
	if left := e.api.Contacts("ann@x.com"); len(left) != 0 {
		t.Errorf("remote contacts = %v, want none", ids(left))
	}

	e.api.Force("GET", "/contacts", 0)
	if _, err := restarted.SyncContacts(ctx); err != nil {
		t.Fatal(err)
	}
	if !restarted.Synchronizer().Loaded() {
		t.Error("Loaded() = false after a successful list")
	}
}

func TestPhonebook_RegisterOffline(t *testing.T) {
	e := newEnv(t)
	e.api.SetDown(true)
	ctx := context.Background()
	pb := e.start(Options{})

	ann, err := pb.Register(ctx, "Ann", "ann@x.com", "pw123456")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	s := pb.Session()
	if ann.ID == "" || s.Token == "" || !s.IsLoggedIn {
		t.Fatalf("register offline: user %+v session %+v", ann, s)
	}
	if !domain.IsLocalToken(s.Token) {
		t.Errorf("token %q is not a local token", s.Token)
	}

	if err := pb.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	u, err := pb.Login(ctx, "ann@x.com", "anything")
	if err != nil {
		t.Fatalf("offline Login failed: %v", err)
	}
	if u != ann || !pb.Session().IsLoggedIn {
		t.Errorf("login = %+v, want %+v", u, ann)
	}

	_, err = pb.Register(ctx, "Other", "ANN@x.com", "pw")
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Errorf("duplicate offline register err = %v, want ErrEmailTaken", err)
	}

	_, err = pb.Login(ctx, "nobody@x.com", "pw")
	if !domain.IsKind(err, domain.KindAuth) {
		t.Errorf("unknown offline login err = %v, want auth", err)
	}
}

func TestPhonebook_ListIdempotent(t *testing.T) {
	e := newEnv(t)
	e.api.Seed("Ann", "ann@x.com", "pw123456")
	pb := e.start(Options{})
	mustLogin(t, pb, "ann@x.com", "pw123456")
	ctx := context.Background()

	for _, name := range []string{"Carol", "Alice", "Bob"} {
		if _, err := pb.AddContact(ctx, name, "1"); err != nil {
			t.Fatal(err)
		}
	}

	first, err := pb.SyncContacts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := pb.SyncContacts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !sameIDs(first, second) {
		t.Errorf("list changed: %v -> %v", ids(first), ids(second))
	}

	e.api.SetDown(true)
	offline, err := pb.SyncContacts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !sameIDs(first, offline) {
		t.Errorf("cached list = %v, want %v", ids(offline), ids(first))
	}
}

func TestPhonebook_Filter(t *testing.T) {
	e := newEnv(t)
	e.api.Seed("Ann", "ann@x.com", "pw123456")
	pb := e.start(Options{})
	mustLogin(t, pb, "ann@x.com", "pw123456")
	ctx := context.Background()

	for _, name := range []string{"Bob Smith", "bobby", "Carol"} {
		if _, err := pb.AddContact(ctx, name, "1"); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		filter string
		want   int
	}{
		{"", 3},
		{"BOB", 2},
		{" smith ", 1},
		{"zed", 0},
	}
	for _, tt := range tests {
		if got := pb.Contacts(tt.filter); len(got) != tt.want {
			t.Errorf("Contacts(%q) = %d, want %d", tt.filter, len(got), tt.want)
		}
	}
	if n := len(pb.Contacts("")); n != 3 {
		t.Errorf("filter mutated collection: %d", n)
	}
}

func TestPhonebook_AuthErrorInvalidates(t *testing.T) {
	e := newEnv(t)
	e.api.Seed("Ann", "ann@x.com", "pw123456")
	pb := e.start(Options{})
	mustLogin(t, pb, "ann@x.com", "pw123456")
	ctx := context.Background()

	if _, err := pb.AddContact(ctx, "Bob", "1"); err != nil {
		t.Fatal(err)
	}
	e.api.RevokeTokens()

	_, err := pb.SyncContacts(ctx)
	if !domain.IsKind(err, domain.KindAuth) {
		t.Fatalf("SyncContacts err = %v, want auth", err)
	}
	if s := pb.Session(); s.State() != domain.StateAnonymous || s.LastError == nil {
		t.Errorf("session = %+v, want anonymous with last error", s)
	}
	if tok, _ := e.store.LoadToken(ctx); tok != "" {
		t.Errorf("persisted token = %q, want cleared", tok)
	}
	if n := len(pb.Contacts("")); n != 0 {
		t.Errorf("contacts = %d, want reset", n)
	}
}

func TestPhonebook_RequiresLogin(t *testing.T) {
	e := newEnv(t)
	pb := e.start(Options{})
	ctx := context.Background()

	_, err := pb.AddContact(ctx, "Bob", "1")
	if !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Errorf("AddContact err = %v", err)
	}
	if err := pb.DeleteContact(ctx, "c1"); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Errorf("DeleteContact err = %v", err)
	}
	if _, err := pb.SyncContacts(ctx); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Errorf("SyncContacts err = %v", err)
	}
	name := "New"
	if _, err := pb.UpdateProfile(ctx, domain.ProfileUpdate{Name: &name}); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Errorf("UpdateProfile err = %v", err)
	}
	if e.api.Requests() != 0 {
		t.Errorf("requests = %d, want 0", e.api.Requests())
	}
}

func TestPhonebook_IdentitySwitchResetsContacts(t *testing.T) {
	e := newEnv(t)
	e.api.Seed("Ann", "ann@x.com", "pw123456")
	e.api.Seed("Bob", "bob@x.com", "pw123456")
	pb := e.start(Options{})
	ctx := context.Background()

	mustLogin(t, pb, "ann@x.com", "pw123456")
	if _, err := pb.AddContact(ctx, "Carol", "1"); err != nil {
		t.Fatal(err)
	}

	e.api.Force("GET", "/contacts", 500)
	mustLogin(t, pb, "bob@x.com", "pw123456")

	if n := len(pb.Contacts("")); n != 0 {
		t.Errorf("contacts after switching user = %d, want 0", n)
	}
	if cached, _ := e.store.LoadContacts(ctx); len(cached) != 0 {
		t.Errorf("cache after switching user = %d, want 0", len(cached))
	}
}

func TestPhonebook_ErrorsAreDomainErrors(t *testing.T) {
	e := newEnv(t)
	e.api.Seed("Ann", "ann@x.com", "pw123456")
	pb := e.start(Options{})
	mustLogin(t, pb, "ann@x.com", "pw123456")
	ctx := context.Background()

	e.api.Force("POST", "/contacts", 503)
	_, err := pb.AddContact(ctx, "Bob", "1")

	var de *domain.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("err %T is not a *DomainError", err)
	}
	if de.Kind != domain.KindServer || de.Status != 503 {
		t.Errorf("err = %+v, want server 503", de)
	}
	if n := len(pb.Contacts("")); n != 0 {
		t.Errorf("server error mutated collection: %d", n)
	}
}
