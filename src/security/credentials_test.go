package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCredentialsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nexus.enc")

	creds := Credentials{APIKey: "AK-live-1234", APISecret: "SK-deadbeef"}
	if err := WriteCredentials(path, creds, "hunter2"); err != nil {
		t.Fatalf("failed to write credentials: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written file: %v", err)
	}
	if strings.Contains(string(raw), creds.APIKey) || strings.Contains(string(raw), creds.APISecret) {
		t.Fatal("credentials stored in plaintext")
	}

	loaded, err := LoadCredentials(path, "hunter2")
	if err != nil {
		t.Fatalf("failed to load credentials: %v", err)
	}
	if loaded.APIKey != creds.APIKey || loaded.APISecret != creds.APISecret {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}

func TestLoadCredentialsWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nexus.enc")

	if err := WriteCredentials(path, Credentials{APIKey: "a", APISecret: "b"}, "right"); err != nil {
		t.Fatalf("failed to write credentials: %v", err)
	}

	if _, err := LoadCredentials(path, "wrong"); err == nil {
		t.Fatal("expected decryption to fail with wrong passphrase")
	}
}

func TestLoadCredentialsRejectsLoosePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nexus.enc")

	if err := WriteCredentials(path, Credentials{APIKey: "a", APISecret: "b"}, "p"); err != nil {
		t.Fatalf("failed to write credentials: %v", err)
	}
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("failed to chmod: %v", err)
	}

	_, err := LoadCredentials(path, "p")
	if err == nil {
		t.Fatal("expected group/other readable file to be rejected")
	}
	if !strings.Contains(err.Error(), "permissions") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSanitizerScrubsSecrets(t *testing.T) {
	sanitize := NewSanitizer("AK-live-1234", "SK-deadbeef", "")

	in := `nexus rejected request: signature for key AK-live-1234 computed with SK-deadbeef invalid`
	out := sanitize(in)

	if strings.Contains(out, "AK-live-1234") || strings.Contains(out, "SK-deadbeef") {
		t.Fatalf("secret survived sanitization: %s", out)
	}
	if !strings.Contains(out, "[redacted]") {
		t.Fatalf("expected redaction marker in output: %s", out)
	}
	if !strings.Contains(out, "nexus rejected request") {
		t.Fatalf("non-secret text must survive: %s", out)
	}
}
