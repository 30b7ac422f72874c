package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func envOf(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devserver.yaml")
	yamlText := "addr: \":9000\"\nprefix: api\ndriver: sqlite\nserver_timing: true\n"
	if err := os.WriteFile(path, []byte(yamlText), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		args       []string
		env        map[string]string
		wantAddr   string
		wantPrefix string
		wantTiming bool
	}{
		{"defaults", nil, nil, ":8080", "odata", false},
		{"yaml file", []string{"-config", path}, nil, ":9000", "api", true},
		{"env over yaml", nil, map[string]string{envConfigPath: path, envPrefix: "env"}, ":9000", "env", true},
		{"flag over env", []string{"-prefix", "flag"}, map[string]string{envPrefix: "env"}, ":8080", "flag", false},
		{"env server timing", nil, map[string]string{envServerTiming: "true"}, ":8080", "odata", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(tt.args, envOf(tt.env), io.Discard)
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			if cfg.Addr != tt.wantAddr || cfg.Prefix != tt.wantPrefix || cfg.ServerTiming != tt.wantTiming {
				t.Errorf("LoadConfig() = %+v, want addr %s prefix %s timing %v", cfg, tt.wantAddr, tt.wantPrefix, tt.wantTiming)
			}
		})
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"postgres without dsn", []string{"-driver", "postgres"}},
		{"unknown driver", []string{"-driver", "oracle"}},
		{"missing file", []string{"-config", filepath.Join(t.TempDir(), "none.yaml")}},
		{"unknown flag", []string{"-nope"}},
	}
	for _, tt := range tests {
		if _, err := LoadConfig(tt.args, envOf(nil), io.Discard); err == nil {
			t.Errorf("%s: LoadConfig() should fail", tt.name)
		}
	}
}

func TestNewService_ServesSamples(t *testing.T) {
	cfg := defaultConfig()
	cfg.DSN = "file:devserver?mode=memory&cache=shared"
	service, err := newService(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newService() error = %v", err)
	}

	w := httptest.NewRecorder()
	service.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/odata/mydatasource/Products(1)/DetailInfo", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestParseLevel(t *testing.T) {
	if got := parseLevel("DEBUG"); got != slog.LevelDebug {
		t.Errorf("parseLevel(DEBUG) = %v, want debug", got)
	}
	if got := parseLevel("bogus"); got != slog.LevelInfo {
		t.Errorf("parseLevel(bogus) = %v, want info", got)
	}
}
