package maestro

import (
	"strings"
	"testing"
)

func TestSanitizeCredentials(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"token=abcd", "token=***"},
		{"api_key=sk-12345", "api_key=***"},
		{"MY_SECRET=hunter2", "MY_SECRET=***"},
		{"db_password=pa55 rest", "db_password=*** rest"},
		{"aws_credential_id=AKIA123", "aws_credential_id=***"},
		{"Authorization: Bearer eyJhbGciOi.xyz", "Authorization: bearer ***"},
		{"value=1", "value=1"}, // no credential word, untouched
	}
	for _, c := range cases {
		if got := Sanitize(c.in); got != c.want {
			t.Errorf("Sanitize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSanitizePaths(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"open /home/alice/notes.txt failed", "open /home/***/notes.txt failed"},
		{"/Users/bob/project", "/Users/***/project"},
		{`read C:\Users\carol\cfg`, `read C:\Users\***\cfg`},
	}
	for _, c := range cases {
		if got := Sanitize(c.in); got != c.want {
			t.Errorf("Sanitize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSanitizeRedactsEveryMatch(t *testing.T) {
	in := "token=a token=b /home/alice /home/bob"
	got := Sanitize(in)
	if n := strings.Count(got, "token=***"); n != 2 {
		t.Errorf("token redactions = %d, want 2 (%q)", n, got)
	}
	if n := strings.Count(got, "/home/***"); n != 2 {
		t.Errorf("path redactions = %d, want 2 (%q)", n, got)
	}
}

func TestSanitizeErrPreservesKind(t *testing.T) {
	err := Errf(ErrBackendFailure, "request failed: token=abcd")
	clean := sanitizeErr(err)
	if KindOf(clean) != ErrBackendFailure {
		t.Errorf("kind = %q", KindOf(clean))
	}
	if strings.Contains(clean.Error(), "abcd") {
		t.Errorf("not redacted: %v", clean)
	}
	if sanitizeErr(nil) != nil {
		t.Error("nil should stay nil")
	}
}
