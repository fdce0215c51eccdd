package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SITEKIT_TEST_NAME", "expanded")
	path := writeFile(t, "name: ${SITEKIT_TEST_NAME}\nport: 8000\n")

	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "expanded" {
		t.Errorf("name = %q, want %q", s.Name, "expanded")
	}
}

func TestLoad_RunsValidator(t *testing.T) {
	path := writeFile(t, "name: x\nport: 0\n")
	var s sample
	if err := Load(path, &s); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadOrDefault_MissingFileKeepsDefaults(t *testing.T) {
	s := sample{Name: "default", Port: 8000}
	found, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"), &s)
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if found {
		t.Error("found = true for a missing file")
	}
	if s.Name != "default" || s.Port != 8000 {
		t.Errorf("defaults changed: %+v", s)
	}
}

func TestLoadOrDefault_ExistingFileOverrides(t *testing.T) {
	path := writeFile(t, "port: 9000\n")
	s := sample{Name: "default", Port: 8000}
	found, err := LoadOrDefault(path, &s)
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if !found || s.Port != 9000 || s.Name != "default" {
		t.Errorf("found=%v s=%+v", found, s)
	}
}
