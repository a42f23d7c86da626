package redact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}

func TestLoadAllowlists_MissingFiles(t *testing.T) {
	allowlist, err := LoadAllowlists(t.TempDir(), filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadAllowlists() error = %v", err)
	}

	if len(allowlist.Paths) != 0 || len(allowlist.Regexes) != 0 {
		t.Errorf("missing files should yield an empty allowlist, got %+v", allowlist)
	}
}

func TestLoadAllowlists_WatchRoot(t *testing.T) {
	dir := t.TempDir()
	content := `[allowlist]
paths = ['''testdata/.*''']
regexes = ['''EXAMPLE_KEY''']
`
	if err := writeFile(filepath.Join(dir, ".gitleaks.toml"), content); err != nil {
		t.Fatal(err)
	}

	allowlist, err := LoadAllowlists(dir, "")
	if err != nil {
		t.Fatalf("LoadAllowlists() error = %v", err)
	}

	if len(allowlist.Paths) != 1 || allowlist.Paths[0] != "testdata/.*" {
		t.Errorf("Paths = %v, want [testdata/.*]", allowlist.Paths)
	}
	if len(allowlist.Regexes) != 1 || allowlist.Regexes[0] != "EXAMPLE_KEY" {
		t.Errorf("Regexes = %v, want [EXAMPLE_KEY]", allowlist.Regexes)
	}
}

func TestLoadAllowlists_MergesBothSources(t *testing.T) {
	rootDir := t.TempDir()
	if err := writeFile(filepath.Join(rootDir, ".gitleaks.toml"), `[allowlist]
regexes = ['''FROM_ROOT''']
`); err != nil {
		t.Fatal(err)
	}

	userFile := filepath.Join(t.TempDir(), "allowlist.toml")
	if err := writeFile(userFile, `[allowlist]
regexes = ['''FROM_USER''']
`); err != nil {
		t.Fatal(err)
	}

	allowlist, err := LoadAllowlists(rootDir, userFile)
	if err != nil {
		t.Fatalf("LoadAllowlists() error = %v", err)
	}

	if len(allowlist.Regexes) != 2 {
		t.Fatalf("Regexes = %v, want both sources merged", allowlist.Regexes)
	}
}

func TestLoadAllowlists_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, ".gitleaks.toml"), "not [valid toml"); err != nil {
		t.Fatal(err)
	}

	_, err := LoadAllowlists(dir, "")
	if !errors.Is(err, ErrInvalidTOML) {
		t.Errorf("error = %v, want ErrInvalidTOML", err)
	}
}

func TestLoadAllowlists_InvalidRegex(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, ".gitleaks.toml"), `[allowlist]
regexes = ['''[unclosed''']
`); err != nil {
		t.Fatal(err)
	}

	_, err := LoadAllowlists(dir, "")
	if !errors.Is(err, ErrInvalidRegex) {
		t.Errorf("error = %v, want ErrInvalidRegex", err)
	}
}
