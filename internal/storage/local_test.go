package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoanes1/phonebook/internal/core/domain"
	"github.com/jmoanes1/phonebook/internal/storage/memory"
)

const testPassphrase = "correct horse battery"

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(context.Background(), memory.New(), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLocal_Session(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t)

	tok, err := l.LoadToken(ctx)
	if err != nil || tok != "" {
		t.Fatalf("LoadToken on empty store = %q, %v", tok, err)
	}
	u, cachedFor, err := l.LoadUser(ctx)
	if err != nil || !u.IsZero() || cachedFor != "" {
		t.Fatalf("LoadUser on empty store = %+v, %q, %v", u, cachedFor, err)
	}

	ann := domain.User{ID: "u1", Name: "Ann", Email: "ann@x.com"}
	if err := l.SaveToken(ctx, "tok-1"); err != nil {
		t.Fatal(err)
	}
	if err := l.SaveUser(ctx, ann, "tok-1"); err != nil {
		t.Fatal(err)
	}

	tok, _ = l.LoadToken(ctx)
	u, cachedFor, _ = l.LoadUser(ctx)
	if tok != "tok-1" || u != ann || cachedFor != "tok-1" {
		t.Errorf("loaded %q %+v %q", tok, u, cachedFor)
	}

	if err := l.ClearSession(ctx); err != nil {
		t.Fatal(err)
	}
	tok, _ = l.LoadToken(ctx)
	u, _, _ = l.LoadUser(ctx)
	if tok != "" || !u.IsZero() {
		t.Errorf("after ClearSession: %q %+v", tok, u)
	}

	if err := l.SaveToken(ctx, "tok-2"); err != nil {
		t.Fatal(err)
	}
	if err := l.SaveToken(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if tok, _ := l.LoadToken(ctx); tok != "" {
		t.Errorf("SaveToken(\"\") should remove the token, got %q", tok)
	}
}

func TestLocal_ContactsKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t)

	// ids chosen so key order differs from insertion order
	for _, c := range []domain.Contact{
		{ID: "z", Name: "Zed", Number: "1"},
		{ID: "a", Name: "Amy", Number: "2"},
		{ID: "m", Name: "Max", Number: "3"},
	} {
		if err := l.PutContact(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	list, err := l.LoadContacts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	assertIDs(t, list, "z", "a", "m")

	// update in place keeps position
	if err := l.PutContact(ctx, domain.Contact{ID: "z", Name: "Zed", Number: "9"}); err != nil {
		t.Fatal(err)
	}
	list, _ = l.LoadContacts(ctx)
	assertIDs(t, list, "z", "a", "m")
	if list[0].Number != "9" {
		t.Errorf("updated number = %q", list[0].Number)
	}

	if err := l.DeleteContact(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := l.DeleteContact(ctx, "a"); !errors.Is(err, domain.ErrContactNotFound) {
		t.Errorf("second delete error = %v, want ErrContactNotFound", err)
	}
	list, _ = l.LoadContacts(ctx)
	assertIDs(t, list, "z", "m")

	// appended after a delete still goes last
	_ = l.PutContact(ctx, domain.Contact{ID: "b", Name: "Bob"})
	list, _ = l.LoadContacts(ctx)
	assertIDs(t, list, "z", "m", "b")
}

func TestLocal_ReplaceAndClearContacts(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t)

	_ = l.PutContact(ctx, domain.Contact{ID: "old"})
	if err := l.ReplaceContacts(ctx, domain.ContactList{{ID: "3"}, {ID: "1"}, {ID: "2"}}); err != nil {
		t.Fatal(err)
	}
	list, _ := l.LoadContacts(ctx)
	assertIDs(t, list, "3", "1", "2")

	_ = l.PutContact(ctx, domain.Contact{ID: "0"})
	list, _ = l.LoadContacts(ctx)
	assertIDs(t, list, "3", "1", "2", "0")

	if err := l.ClearContacts(ctx); err != nil {
		t.Fatal(err)
	}
	list, err := l.LoadContacts(ctx)
	if err != nil || len(list) != 0 {
		t.Errorf("after ClearContacts: %v, %v", list, err)
	}
}

func TestLocal_Accounts(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t)

	acc, err := domain.NewAccount(domain.User{ID: "local-1", Name: "Ann", Email: "Ann@X.com"}, "pw", 1)
	if err != nil {
		t.Fatal(err)
	}
	acc.TokenHash = domain.HashToken("pbtk_first")
	if err := l.CreateAccount(ctx, acc); err != nil {
		t.Fatal(err)
	}

	dup, _ := domain.NewAccount(domain.User{ID: "local-2", Email: "ann@x.com"}, "pw", 2)
	if err := l.CreateAccount(ctx, dup); !errors.Is(err, domain.ErrEmailTaken) {
		t.Errorf("duplicate email error = %v, want ErrEmailTaken", err)
	}

	got, err := l.FindAccountByEmail(ctx, "  ANN@x.com ")
	if err != nil || got.User.ID != "local-1" {
		t.Fatalf("FindAccountByEmail = %+v, %v", got, err)
	}
	if _, err := l.FindAccountByEmail(ctx, "bob@x.com"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("unknown email error = %v", err)
	}

	got, err = l.FindAccountByToken(ctx, "pbtk_first")
	if err != nil || got.User.ID != "local-1" {
		t.Fatalf("FindAccountByToken = %+v, %v", got, err)
	}

	if err := l.BindAccountToken(ctx, "local-1", "pbtk_second"); err != nil {
		t.Fatal(err)
	}
	if _, err := l.FindAccountByToken(ctx, "pbtk_first"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("old token should no longer resolve, got %v", err)
	}
	if got, err := l.FindAccountByToken(ctx, "pbtk_second"); err != nil || got.User.ID != "local-1" {
		t.Errorf("new token lookup = %+v, %v", got, err)
	}
	if _, err := l.FindAccountByToken(ctx, ""); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("empty token lookup = %v", err)
	}
}

func TestLocal_UpdateAccountMovesEmailIndex(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t)

	ann, _ := domain.NewAccount(domain.User{ID: "local-1", Email: "ann@x.com"}, "pw", 1)
	bob, _ := domain.NewAccount(domain.User{ID: "local-2", Email: "bob@x.com"}, "pw", 1)
	_ = l.CreateAccount(ctx, ann)
	_ = l.CreateAccount(ctx, bob)

	taken := *ann
	taken.User.Email = "bob@x.com"
	if err := l.UpdateAccount(ctx, &taken); !errors.Is(err, domain.ErrEmailTaken) {
		t.Errorf("update to taken email = %v, want ErrEmailTaken", err)
	}

	moved := *ann
	moved.User.Email = "annie@x.com"
	moved.User.Name = "Annie"
	if err := l.UpdateAccount(ctx, &moved); err != nil {
		t.Fatal(err)
	}
	if _, err := l.FindAccountByEmail(ctx, "ann@x.com"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("old email should be released, got %v", err)
	}
	got, err := l.FindAccountByEmail(ctx, "annie@x.com")
	if err != nil || got.User.Name != "Annie" {
		t.Errorf("FindAccountByEmail(new) = %+v, %v", got, err)
	}

	missing := domain.Account{User: domain.User{ID: "nope"}}
	if err := l.UpdateAccount(ctx, &missing); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("update of unknown account = %v", err)
	}
}

func TestLocal_Sealing(t *testing.T) {
	ctx := context.Background()
	engine := memory.New()

	l, err := NewLocal(ctx, engine, testPassphrase, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !l.Sealed() {
		t.Fatal("store should be sealed")
	}
	if err := l.SaveToken(ctx, "pbtk_secret_value"); err != nil {
		t.Fatal(err)
	}

	raw, err := engine.Get(ctx, []byte(keySessionToken))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(raw, []byte("pbtk_secret_value")) {
		t.Error("sealed value is readable on the engine")
	}

	// reopen over the same engine
	again, err := NewLocal(ctx, engine, testPassphrase, nil)
	if err != nil {
		t.Fatal(err)
	}
	if tok, err := again.LoadToken(ctx); err != nil || tok != "pbtk_secret_value" {
		t.Errorf("LoadToken after reopen = %q, %v", tok, err)
	}

	// a value copied under another key does not open
	_ = engine.Set(ctx, []byte(keySessionUser), raw)
	if _, _, err := again.LoadUser(ctx); !domain.IsKind(err, domain.KindStorage) {
		t.Errorf("moved value error = %v, want storage error", err)
	}

	tests := []struct {
		name       string
		passphrase string
		want       error
	}{
		{"wrong passphrase", "incorrect horse", ErrPassphraseWrong},
		{"missing passphrase", "", ErrPassphraseNeeded},
		{"weak passphrase", "short", ErrPassphraseTooWeak},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLocal(ctx, engine, tt.passphrase, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("NewLocal error = %v, want %v", err, tt.want)
			}
			if !domain.IsKind(err, domain.KindStorage) {
				t.Errorf("error kind = %q", domain.KindOf(err))
			}
		})
	}
}

func TestLocal_SealingRefusesPlainData(t *testing.T) {
	ctx := context.Background()
	engine := memory.New()

	plain, err := NewLocal(ctx, engine, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	_ = plain.SaveToken(ctx, "tok")

	if _, err := NewLocal(ctx, engine, testPassphrase, nil); !errors.Is(err, ErrStoreNotSealed) {
		t.Errorf("error = %v, want ErrStoreNotSealed", err)
	}
}

func TestLocal_ExportImport(t *testing.T) {
	ctx := context.Background()
	src := newTestLocal(t)
	_ = src.SaveToken(ctx, "tok")
	_ = src.PutContact(ctx, domain.Contact{ID: "2", Name: "B"})
	_ = src.PutContact(ctx, domain.Contact{ID: "1", Name: "A"})

	var buf bytes.Buffer
	if err := src.Export(ctx, &buf); err != nil {
		t.Fatal(err)
	}

	dst := newTestLocal(t)
	_ = dst.PutContact(ctx, domain.Contact{ID: "stale"})
	if err := dst.Import(ctx, bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatal(err)
	}

	tok, _ := dst.LoadToken(ctx)
	list, _ := dst.LoadContacts(ctx)
	if tok != "tok" {
		t.Errorf("token after import = %q", tok)
	}
	assertIDs(t, list, "2", "1")

	sealed, err := NewLocal(ctx, memory.New(), testPassphrase, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := sealed.Import(ctx, bytes.NewReader(buf.Bytes())); !errors.Is(err, ErrStoreNotSealed) {
		t.Errorf("importing a plain backup into a sealed store = %v", err)
	}

	if err := dst.Import(ctx, bytes.NewReader([]byte{0, 0, 0, 3, 1, 2, 3})); err == nil {
		t.Error("garbage backup should fail")
	}
}

func TestLocal_ExportImportSealed(t *testing.T) {
	ctx := context.Background()
	src, err := NewLocal(ctx, memory.New(), testPassphrase, nil)
	if err != nil {
		t.Fatal(err)
	}
	_ = src.SaveToken(ctx, "tok")

	var buf bytes.Buffer
	if err := src.Export(ctx, &buf); err != nil {
		t.Fatal(err)
	}

	plain := newTestLocal(t)
	if err := plain.Import(ctx, bytes.NewReader(buf.Bytes())); !errors.Is(err, ErrPassphraseNeeded) {
		t.Errorf("sealed backup into plain store = %v", err)
	}

	// a sealed store with its own salt adopts the backup's seal
	dst, err := NewLocal(ctx, memory.New(), testPassphrase, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := dst.Import(ctx, bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatal(err)
	}
	if tok, err := dst.LoadToken(ctx); err != nil || tok != "tok" {
		t.Errorf("LoadToken after sealed import = %q, %v", tok, err)
	}
}

func TestLocal_KeyCounts(t *testing.T) {
	ctx := context.Background()
	l := newTestLocal(t)
	_ = l.SaveToken(ctx, "tok")
	_ = l.PutContact(ctx, domain.Contact{ID: "1"})
	_ = l.PutContact(ctx, domain.Contact{ID: "2"})

	counts, err := l.KeyCounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts["contact"] != 2 || counts["session"] != 1 || counts["meta"] != 1 {
		t.Errorf("KeyCounts = %v", counts)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("badger", func(t *testing.T) {
		cfg := Config{Engine: EngineBadger, Badger: DefaultBadgerConfig(t.TempDir())}
		l, err := Open(ctx, cfg, nil)
		if err != nil {
			t.Fatal(err)
		}
		defer l.Close()
		if l.EngineName() != EngineBadger {
			t.Errorf("engine = %q", l.EngineName())
		}
	})

	t.Run("memory", func(t *testing.T) {
		l, err := Open(ctx, Config{Engine: EngineMemory}, nil)
		if err != nil {
			t.Fatal(err)
		}
		defer l.Close()
		if l.EngineName() != memory.Name {
			t.Errorf("engine = %q", l.EngineName())
		}
	})

	t.Run("badger unavailable swaps in memory", func(t *testing.T) {
		notADir := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(notADir, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
		l, err := Open(ctx, Config{Badger: DefaultBadgerConfig(notADir)}, nil)
		if err != nil {
			t.Fatal(err)
		}
		defer l.Close()
		if l.EngineName() != memory.Name {
			t.Errorf("engine = %q, want memory", l.EngineName())
		}
	})

	t.Run("unknown engine", func(t *testing.T) {
		_, err := Open(ctx, Config{Engine: "sqlite"}, nil)
		if !domain.IsKind(err, domain.KindStorage) {
			t.Errorf("error = %v, want storage error", err)
		}
	})
}

func assertIDs(t *testing.T, list domain.ContactList, ids ...string) {
	t.Helper()
	if len(list) != len(ids) {
		t.Fatalf("got %d contacts %v, want ids %v", len(list), list, ids)
	}
	for i, id := range ids {
		if list[i].ID != id {
			t.Fatalf("contact[%d].ID = %q, want %q (list %v)", i, list[i].ID, id, list)
		}
	}
}
