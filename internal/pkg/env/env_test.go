package env

import "testing"

func TestGetEnvPrecedence(t *testing.T) {
	old := Env
	defer func() { Env = old }()

	Env = map[string]string{"APP_PORT": "4000"}
	t.Setenv("APP_PORT", "9999")
	t.Setenv("STACKS_NODE_URL", "http://node:20443")

	if got := GetEnv("APP_PORT", "1234"); got != "4000" {
		t.Fatalf("snapshot should win over the process environment, got %q", got)
	}
	if got := GetEnv("STACKS_NODE_URL", "http://localhost:20443"); got != "http://node:20443" {
		t.Fatalf("process environment should back the snapshot, got %q", got)
	}
	if got := GetEnv("UNSET_KEY", "fallback"); got != "fallback" {
		t.Fatalf("default should apply when nothing is set, got %q", got)
	}
}

func TestIsDev(t *testing.T) {
	old := Env
	defer func() { Env = old }()

	Env = map[string]string{"APP_ENV": "dev"}
	if !IsDev() {
		t.Fatal("APP_ENV=dev should report dev mode")
	}
	Env = map[string]string{}
	t.Setenv("APP_ENV", "")
	if IsDev() {
		t.Fatal("missing APP_ENV should default to prod")
	}
}
