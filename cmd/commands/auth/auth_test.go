package auth

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"nathanbeddoewebdev/sirius/internal/services/auth"
	"nathanbeddoewebdev/sirius/internal/services/sessiontest"
)

// execAuth runs the auth command with args and stdin, returning stdout and stderr.
func execAuth(t *testing.T, stdin io.Reader, args ...string) (stdout, stderr string) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	cmd := NewCommand()
	cmd.SetIn(stdin)
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	cmd.Execute()
	return outBuf.String(), errBuf.String()
}

func TestLogin_TokenFlag(t *testing.T) {
	sessiontest.Setup(t, 1)

	stdout, stderr := execAuth(t, strings.NewReader(""), "login", "--token", " secret ")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	if !strings.Contains(stdout, "Saved token for http://127.0.0.1") {
		t.Errorf("expected confirmation, got: %s", stdout)
	}
	got, err := auth.DefaultStore().GetToken(auth.TokenKey)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got != "secret" {
		t.Errorf("stored token = %q, want %q", got, "secret")
	}
}

func TestLogin_Stdin(t *testing.T) {
	sessiontest.Setup(t, 1)

	_, stderr := execAuth(t, strings.NewReader("from-pipe\n"), "login")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	got, err := auth.DefaultStore().GetToken(auth.TokenKey)
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got != "from-pipe" {
		t.Errorf("stored token = %q, want %q", got, "from-pipe")
	}
}

func TestLogin_EmptyStdin(t *testing.T) {
	sessiontest.Setup(t, 1)

	_, stderr := execAuth(t, strings.NewReader(""), "login")

	if !strings.Contains(stderr, "no token on stdin") {
		t.Errorf("expected stdin error, got: %s", stderr)
	}
}

func TestLogout(t *testing.T) {
	sessiontest.Setup(t, 1)
	if err := auth.DefaultStore().SetToken(auth.TokenKey, "secret"); err != nil {
		t.Fatal(err)
	}

	stdout, _ := execAuth(t, nil, "logout")
	if !strings.Contains(stdout, "Token removed.") {
		t.Errorf("expected removal, got: %s", stdout)
	}
	if _, err := auth.DefaultStore().GetToken(auth.TokenKey); !errors.Is(err, auth.ErrTokenNotFound) {
		t.Errorf("token still stored: %v", err)
	}

	stdout, _ = execAuth(t, nil, "logout")
	if !strings.Contains(stdout, "No token stored.") {
		t.Errorf("expected nothing to remove, got: %s", stdout)
	}
}

func TestStatus_NonInteractive(t *testing.T) {
	sessiontest.Setup(t, 2)

	stdout, stderr := execAuth(t, nil, "status")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	for _, want := range []string{"query service: http://127.0.0.1", "token: not stored", "reachable: yes (2 processes)"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output:\n%s", want, stdout)
		}
	}
}

func TestLogin_RejectedTokenNotStored(t *testing.T) {
	sessiontest.Setup(t, 1, sessiontest.WithServerToken("right"))

	stdout, stderr := execAuth(t, strings.NewReader(""), "login", "--token", "wrong")

	if !strings.Contains(stderr, "token rejected by http://127.0.0.1") {
		t.Errorf("expected rejection, got stderr: %s", stderr)
	}
	if stdout != "" {
		t.Errorf("unexpected stdout: %s", stdout)
	}
	if _, err := auth.DefaultStore().GetToken(auth.TokenKey); !errors.Is(err, auth.ErrTokenNotFound) {
		t.Errorf("rejected token was stored: %v", err)
	}
}

func TestLogin_NoVerifySkipsCheck(t *testing.T) {
	sessiontest.Setup(t, 1, sessiontest.WithServerToken("right"))

	_, stderr := execAuth(t, strings.NewReader(""), "login", "--token", "wrong", "--no-verify")

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	if got, err := auth.DefaultStore().GetToken(auth.TokenKey); err != nil || got != "wrong" {
		t.Errorf("stored token = %q, %v", got, err)
	}
}

func TestLogin_UnreachableSavesWithWarning(t *testing.T) {
	sessiontest.Setup(t, 1)
	t.Setenv("SIRIUS_BACKEND_URL", "http://127.0.0.1:1")
	t.Setenv("SIRIUS_RETRY_MAX_ATTEMPTS", "1")

	stdout, stderr := execAuth(t, strings.NewReader(""), "login", "--token", "secret")

	if !strings.Contains(stderr, "could not reach the query service") {
		t.Errorf("expected a warning, got stderr: %s", stderr)
	}
	if !strings.Contains(stdout, "Saved token") {
		t.Errorf("expected confirmation, got: %s", stdout)
	}
}

func TestStatus_TokenRejected(t *testing.T) {
	sessiontest.Setup(t, 1, sessiontest.WithServerToken("right"))
	if err := auth.DefaultStore().SetToken(auth.TokenKey, "wrong"); err != nil {
		t.Fatal(err)
	}

	stdout, _ := execAuth(t, nil, "status")

	for _, want := range []string{"token: stored", "reachable: token rejected"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output:\n%s", want, stdout)
		}
	}
}
