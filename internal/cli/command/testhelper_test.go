package command

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmoanes1/phonebook/internal/infra/shutdown"
	"github.com/jmoanes1/phonebook/internal/tests/fakeapi"
)

const testPassword = "pw123456"

// harness runs the CLI against a fake api with a private config file and
// data directory. Every run is a separate process lifetime: the store is
// closed before run returns.
type harness struct {
	t      *testing.T
	api    *fakeapi.Server
	config string
	data   string
}

type result struct {
	stdout string
	stderr string
	err    error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("PHONEBOOK_PASSWORD", "")
	os.Unsetenv("PHONEBOOK_PASSWORD")
	api := fakeapi.New()
	t.Cleanup(api.Close)

	dir := t.TempDir()
	return &harness{
		t:      t,
		api:    api,
		config: filepath.Join(dir, "cli.yaml"),
		data:   filepath.Join(dir, "data"),
	}
}

func (h *harness) run(stdin string, args ...string) result {
	h.t.Helper()
	return h.runReader(strings.NewReader(stdin), args...)
}

func (h *harness) runReader(in io.Reader, args ...string) result {
	sh := shutdown.NewHandler(5 * time.Second)
	app := App(sh)
	var out, errOut bytes.Buffer
	app.Reader = in
	app.Writer = &out
	app.ErrWriter = &errOut

	argv := append([]string{"phonebook-cli",
		"--config", h.config,
		"--server", h.api.URL,
		"--data-dir", h.data,
	}, args...)
	err := app.RunContext(context.Background(), argv)
	if serr := sh.Shutdown(); serr != nil {
		h.t.Errorf("shutdown: %v", serr)
	}
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

// mustRun runs args and fails the test on error.
func (h *harness) mustRun(args ...string) result {
	h.t.Helper()
	res := h.run("", args...)
	if res.err != nil {
		h.t.Fatalf("%v: %v\nstderr: %s", args, res.err, res.stderr)
	}
	return res
}

// login seeds an account on the api and logs it in.
func (h *harness) login(name, email string) {
	h.t.Helper()
	h.api.Seed(name, email, testPassword)
	h.mustRun("login", email, "-p", testPassword)
}

func decodeJSON(t *testing.T, s string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(s), v); err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
}
