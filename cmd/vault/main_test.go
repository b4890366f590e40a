package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/and161185/journeyvault/internal/config"
	"github.com/and161185/journeyvault/internal/errs"
	"github.com/and161185/journeyvault/internal/lock"
	"github.com/and161185/journeyvault/internal/model"
	"github.com/and161185/journeyvault/internal/service"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// fakeJourneys implements the calls the tests make; the rest panic.
type fakeJourneys struct {
	service.JourneyService

	viewer  uuid.UUID
	views   []service.JourneyView
	vault   bool
	created service.CreateJourneyInput
	deleted uuid.UUID
}

func (f *fakeJourneys) List(_ context.Context, viewer uuid.UUID) ([]service.JourneyView, error) {
	f.viewer = viewer
	return f.views, nil
}

func (f *fakeJourneys) Vault(_ context.Context, viewer uuid.UUID) ([]service.JourneyView, error) {
	f.viewer = viewer
	f.vault = true
	return nil, nil
}

func (f *fakeJourneys) Create(_ context.Context, viewer uuid.UUID, in service.CreateJourneyInput) (*model.Journey, error) {
	f.viewer = viewer
	f.created = in
	return &model.Journey{ID: uuid.Must(uuid.NewV4()), OwnerID: viewer, Name: in.Name, UnlockAt: in.UnlockAt, Emoji: in.Emoji, Status: model.StatusActive}, nil
}

func (f *fakeJourneys) Delete(_ context.Context, viewer, id uuid.UUID) error {
	f.viewer = viewer
	f.deleted = id
	return nil
}

func (f *fakeJourneys) Sweep(context.Context) (int64, error) { return 2, nil }

func testEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("JOURNEYVAULT_SUPABASE_URL", "https://test.supabase.co")
	t.Setenv("JOURNEYVAULT_SUPABASE_KEY", "anon")
	t.Setenv("JOURNEYVAULT_ACCESS_TOKEN", "")
}

func testCLI(fj *fakeJourneys) *cli {
	c := newCLI()
	c.now = func() time.Time { return testNow }
	c.build = func(context.Context, *config.Config, *zap.Logger) (*app, error) {
		return &app{journeys: fj, log: zap.NewNop()}, nil
	}
	return c
}

func run(c *cli, args ...string) (string, error) {
	var out bytes.Buffer
	c.out = &out
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(""))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mintToken(t *testing.T, sub uuid.UUID, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub.String(),
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func Test_parseWhen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-12-24", time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC)},
		{"2026-12-24 18:00", time.Date(2026, 12, 24, 18, 0, 0, 0, time.UTC)},
		{"2026-12-24T18:00:00+09:00", time.Date(2026, 12, 24, 9, 0, 0, 0, time.UTC)},
		{"7d", testNow.Add(7 * 24 * time.Hour)},
		{"+1d12h", testNow.Add(36 * time.Hour)},
		{"90m", testNow.Add(90 * time.Minute)},
	}
	for _, tt := range tests {
		got, err := parseWhen(tt.in, testNow)
		if err != nil {
			t.Fatalf("parseWhen(%q): %v", tt.in, err)
		}
		if !got.Equal(tt.want) {
			t.Fatalf("parseWhen(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "soon", "-1h", "0d", "xd"} {
		if _, err := parseWhen(bad, testNow); !errors.Is(err, errUsage) {
			t.Fatalf("parseWhen(%q) err = %v, want usage error", bad, err)
		}
	}
}

func Test_humanize(t *testing.T) {
	t.Parallel()

	cases := map[time.Duration]string{
		30 * time.Second:               "less than a minute",
		45 * time.Minute:               "45m",
		2 * time.Hour:                  "2h",
		2*time.Hour + 5*time.Minute:    "2h 5m",
		3 * 24 * time.Hour:             "3d",
		3*24*time.Hour + 4*time.Hour:   "3d 4h",
		3*24*time.Hour + 4*time.Minute: "3d",
	}
	for d, want := range cases {
		if got := humanize(d); got != want {
			t.Fatalf("humanize(%v) = %q, want %q", d, got, want)
		}
	}
}

func Test_exitCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{nil, exitSuccess},
		{fmt.Errorf("x: %w", errUsage), exitUserError},
		{fmt.Errorf("x: %w", errs.ErrAccessDenied), exitUserError},
		{fmt.Errorf("x: %w", errs.ErrValidation), exitUserError},
		{config.ErrNoToken, exitUserError},
		{errors.New("connection refused"), exitSysError},
	}
	for _, tt := range cases {
		if got := exitCode(tt.err); got != tt.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func Test_noteText(t *testing.T) {
	t.Parallel()

	got, err := noteText(strings.NewReader("ignored"), "", []string{"tea", "in", "Uji"})
	if err != nil || got != "tea in Uji" {
		t.Fatalf("args: %q %v", got, err)
	}
	got, err = noteText(strings.NewReader("from stdin\n"), "", nil)
	if err != nil || got != "from stdin\n" {
		t.Fatalf("stdin: %q %v", got, err)
	}
	if _, err := noteText(nil, "note.txt", []string{"x"}); !errors.Is(err, errUsage) {
		t.Fatalf("args and file: %v", err)
	}
}

func Test_parseFacingAndFilter(t *testing.T) {
	t.Parallel()

	if _, err := parseFacing("sideways"); !errors.Is(err, errUsage) {
		t.Fatalf("facing: %v", err)
	}
	f, err := parseFilter("Mono")
	if err != nil || f.Name() != "mono" {
		t.Fatalf("filter: %v %v", f, err)
	}
	if _, err := parseFilter("sepia"); !errors.Is(err, errUsage) {
		t.Fatalf("unknown filter: %v", err)
	}
}

func Test_JourneyList_JSON(t *testing.T) {
	testEnv(t)
	me := uuid.Must(uuid.NewV4())
	fj := &fakeJourneys{views: []service.JourneyView{{
		Journey:     model.Journey{ID: uuid.Must(uuid.NewV4()), OwnerID: me, Name: "Kyoto", Emoji: "⛩️", UnlockAt: testNow.Add(50 * time.Hour), Status: model.StatusActive},
		State:       lock.Locked,
		Role:        lock.RoleOwner,
		MemoryCount: 3,
		Remaining:   50 * time.Hour,
	}}}

	out, err := run(testCLI(fj), "--json", "--token", "Bearer "+mintToken(t, me, testNow.Add(time.Hour)), "journey", "list")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if fj.viewer != me {
		t.Fatalf("viewer = %s, want %s", fj.viewer, me)
	}
	var got []journeyOut
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(got) != 1 || got[0].Name != "Kyoto" || got[0].State != "locked" || got[0].Remaining != "2d 2h" || got[0].Memories != 3 {
		t.Fatalf("unexpected output: %+v", got)
	}
}

func Test_JourneyList_VaultText(t *testing.T) {
	testEnv(t)
	me := uuid.Must(uuid.NewV4())
	fj := &fakeJourneys{}
	out, err := run(testCLI(fj), "--token", mintToken(t, me, testNow.Add(time.Hour)), "journey", "ls", "--vault")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !fj.vault || !strings.Contains(out, "no journeys") {
		t.Fatalf("vault=%v out=%q", fj.vault, out)
	}
}

func Test_JourneyCreate(t *testing.T) {
	testEnv(t)
	me := uuid.Must(uuid.NewV4())
	fj := &fakeJourneys{}
	out, err := run(testCLI(fj), "--token", mintToken(t, me, testNow.Add(time.Hour)),
		"journey", "create", "Spring", "in", "Kyoto", "--in", "7d", "--emoji", "🌸")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if fj.created.Name != "Spring in Kyoto" || fj.created.Emoji != "🌸" {
		t.Fatalf("created: %+v", fj.created)
	}
	if !fj.created.UnlockAt.Equal(testNow.Add(7 * 24 * time.Hour)) {
		t.Fatalf("unlock at %v", fj.created.UnlockAt)
	}
	if !strings.Contains(out, "🌸 Spring in Kyoto") {
		t.Fatalf("out: %q", out)
	}

	_, err = run(testCLI(fj), "--token", mintToken(t, me, testNow.Add(time.Hour)), "journey", "create", "No date")
	if !errors.Is(err, errUsage) {
		t.Fatalf("missing unlock: %v", err)
	}
}

func Test_JourneyDelete_NeedsConfirmation(t *testing.T) {
	testEnv(t)
	me := uuid.Must(uuid.NewV4())
	id := uuid.Must(uuid.NewV4())
	tok := mintToken(t, me, testNow.Add(time.Hour))

	fj := &fakeJourneys{}
	if _, err := run(testCLI(fj), "--token", tok, "journey", "delete", id.String()); !errors.Is(err, errUsage) {
		t.Fatalf("without --yes: %v", err)
	}
	if fj.deleted != uuid.Nil {
		t.Fatalf("deleted without confirmation")
	}
	if _, err := run(testCLI(fj), "--token", tok, "journey", "delete", id.String(), "--yes"); err != nil {
		t.Fatalf("with --yes: %v", err)
	}
	if fj.deleted != id {
		t.Fatalf("deleted %s, want %s", fj.deleted, id)
	}
	if _, err := run(testCLI(fj), "--token", tok, "journey", "delete", "not-an-id", "--yes"); !errors.Is(err, errUsage) {
		t.Fatalf("bad id: %v", err)
	}
}

func Test_NoToken(t *testing.T) {
	testEnv(t)
	_, err := run(testCLI(&fakeJourneys{}), "journey", "list")
	if !errors.Is(err, config.ErrNoToken) {
		t.Fatalf("err = %v, want ErrNoToken", err)
	}
	if exitCode(err) != exitUserError {
		t.Fatalf("exit code %d", exitCode(err))
	}
}

func Test_ExpiredToken(t *testing.T) {
	testEnv(t)
	tok := mintToken(t, uuid.Must(uuid.NewV4()), testNow.Add(-time.Hour))
	if _, err := run(testCLI(&fakeJourneys{}), "--token", tok, "journey", "list"); err == nil {
		t.Fatalf("expired token accepted")
	}
}

func Test_LoginWhoamiLogout(t *testing.T) {
	testEnv(t)
	me := uuid.Must(uuid.NewV4())
	tok := mintToken(t, me, testNow.Add(24*time.Hour))

	out, err := run(testCLI(nil), "login", tok)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, me.String()) {
		t.Fatalf("login out: %q", out)
	}

	out, err = run(testCLI(nil), "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if strings.TrimSpace(out) != me.String() {
		t.Fatalf("whoami = %q, want %s", out, me)
	}

	if _, err := run(testCLI(nil), "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := run(testCLI(nil), "whoami"); !errors.Is(err, config.ErrNoToken) {
		t.Fatalf("after logout: %v", err)
	}
	if _, err := run(testCLI(nil), "login", "garbage"); !errors.Is(err, errUsage) {
		t.Fatalf("bad token: %v", err)
	}
}

func Test_Sweep(t *testing.T) {
	testEnv(t)
	out, err := run(testCLI(&fakeJourneys{}), "sweep")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !strings.Contains(out, "completed 2 journeys") {
		t.Fatalf("out: %q", out)
	}
}

func Test_UserAdd_NeedsAccounts(t *testing.T) {
	testEnv(t)
	_, err := run(testCLI(&fakeJourneys{}), "user", "add", "mika@example.com")
	if !errors.Is(err, errNoAccounts) {
		t.Fatalf("err = %v", err)
	}
}

func Test_CapturePhoto_NeedsSource(t *testing.T) {
	testEnv(t)
	tok := mintToken(t, uuid.Must(uuid.NewV4()), testNow.Add(time.Hour))
	_, err := run(testCLI(&fakeJourneys{}), "--token", tok, "capture", "photo", uuid.Must(uuid.NewV4()).String())
	if !errors.Is(err, errUsage) {
		t.Fatalf("err = %v", err)
	}
}

func Test_MigrateNeedsDSN(t *testing.T) {
	testEnv(t)
	_, err := run(testCLI(nil), "migrate", "version")
	if !errors.Is(err, errUsage) {
		t.Fatalf("err = %v", err)
	}
}
