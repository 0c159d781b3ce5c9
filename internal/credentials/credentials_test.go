package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sample = `{"EVENTSHUB_ACCOUNT_NAME":"acct","EVENTSHUB_NAME":"hub1","EVENTSHUB_CONNECTION_STRING":"Endpoint=sb://acct.servicebus.windows.net/;SharedAccessKeyName=send;SharedAccessKey=abc="}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestLoad_ExplicitPathVerbatim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	writeFile(t, path, sample)

	c, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if c.AccountName() != "acct" {
		t.Errorf("AccountName = %q; want acct", c.AccountName())
	}
	if c.HubName() != "hub1" {
		t.Errorf("HubName = %q; want hub1", c.HubName())
	}
	want := "Endpoint=sb://acct.servicebus.windows.net/;SharedAccessKeyName=send;SharedAccessKey=abc="
	if c.ConnectionString() != want {
		t.Errorf("ConnectionString = %q; want %q", c.ConnectionString(), want)
	}
	if c.Source() != path {
		t.Errorf("Source = %q; want %q", c.Source(), path)
	}
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"), "")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("error = %v; want ErrConfigNotFound", err)
	}
}

func TestLoad_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), sample)
	t.Chdir(dir)

	c, err := Load("", filepath.Join(dir, "does-not-exist"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Source() != FileName {
		t.Errorf("Source = %q; want %q", c.Source(), FileName)
	}
}

func TestLoad_RecursiveSearch(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", FileName)
	writeFile(t, nested, sample)
	t.Chdir(t.TempDir())

	c, err := Load("", root)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Source() != nested {
		t.Errorf("Source = %q; want %q", c.Source(), nested)
	}
	if c.HubName() != "hub1" {
		t.Errorf("HubName = %q; want hub1", c.HubName())
	}
}

func TestLoad_NotFoundIsRecoverable(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load("", t.TempDir())
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("error = %v; want ErrConfigNotFound", err)
	}
}

func TestParse_MissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	writeFile(t, path, `{"EVENTSHUB_ACCOUNT_NAME":"acct"}`)

	_, err := Parse(path)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("error = %v; want ErrInvalidCredentials", err)
	}
}

func TestParse_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	writeFile(t, path, `{"EVENTSHUB_NAME":`)

	_, err := Parse(path)
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if errors.Is(err, ErrConfigNotFound) {
		t.Errorf("malformed file reported as not found: %v", err)
	}
}

func TestParse_EnvironmentOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	writeFile(t, path, sample)
	t.Setenv("EVENTSHUB_NAME", "hub-from-env")

	c, err := Parse(path)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c.HubName() != "hub-from-env" {
		t.Errorf("HubName = %q; want hub-from-env", c.HubName())
	}
}
