package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// runCLI mirrors five82-spindle's cmd/spindle/test_helpers_test.go runCLI:
// build the root command fresh, capture stdout, and execute one invocation.
func runCLI(t *testing.T, args []string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func setEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_DIR", t.TempDir())
}

func TestConfigValidate(t *testing.T) {
	setEnv(t)
	out, err := runCLI(t, []string{"config", "validate"})
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !bytes.Contains([]byte(out), []byte("Configuration valid")) {
		t.Fatalf("expected %q to contain %q", out, "Configuration valid")
	}
}

func TestSeasonRefresh(t *testing.T) {
	setEnv(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"races": []map[string]any{
				{
					"round":    "1",
					"raceName": "Bahrain Grand Prix",
					"circuit": map[string]any{
						"circuitName": "Bahrain International Circuit",
						"country":     "Bahrain",
					},
					"schedule": map[string]any{
						"race": map[string]any{"date": "2026-03-08", "time": "15:00:00"},
					},
				},
			},
		})
	}))
	defer srv.Close()
	t.Setenv("F1API_BASE_URL", srv.URL)

	out, err := runCLI(t, []string{"season", "refresh", "2026"})
	if err != nil {
		t.Fatalf("season refresh: %v", err)
	}
	if !bytes.Contains([]byte(out), []byte("Season 2026 refreshed")) {
		t.Fatalf("expected %q to contain %q", out, "Season 2026 refreshed")
	}
}

func TestTickOnceRunsWithNoDueEntries(t *testing.T) {
	setEnv(t)
	out, err := runCLI(t, []string{"tick", "once"})
	if err != nil {
		t.Fatalf("tick once: %v", err)
	}
	if !bytes.Contains([]byte(out), []byte("Tick complete")) {
		t.Fatalf("expected %q to contain %q", out, "Tick complete")
	}
}

func TestSeasonRefreshRejectsInvalidYear(t *testing.T) {
	setEnv(t)
	_, err := runCLI(t, []string{"season", "refresh", "not-a-year"})
	if err == nil {
		t.Fatal("expected an error for a non-numeric year")
	}
}
