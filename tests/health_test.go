package tests

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestHealth(t *testing.T) {
	code, env := doJSON(t, http.MethodGet, "/health", nil)
	expect(t, code, env, http.StatusOK, "Healthy", "")

	var data struct {
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode health data: %v", err)
	}
	for name, state := range data.Checks {
		if state != "up" {
			t.Fatalf("expected check %s up, got %s", name, state)
		}
	}
}
