package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-lwm2m/internal/api"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/objects"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails when LWM2M_CONFIG names a
// missing file.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("LWM2M_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_InvalidObjectsDir verifies run fails when the extra object
// directory cannot be read.
func TestRun_InvalidObjectsDir(t *testing.T) {
	t.Setenv("LWM2M_CONFIG", writeConfig(t, `
server:
  id: test
api:
  enabled: false
objects:
  dir: "/nonexistent/objects"
logging:
  level: error
`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with a missing objects directory")
	}
}

// TestRun_StartupAndShutdown starts with the persistent directory and no
// external services, then cancels.
func TestRun_StartupAndShutdown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "lwm2m.db")
	t.Setenv("LWM2M_CONFIG", writeConfig(t, `
server:
  id: test
database:
  path: "`+dbPath+`"
  wal_mode: true
  busy_timeout: 5
directory:
  persistent: true
  lifetime_check_interval: 1
mqtt:
  enabled: false
influxdb:
  enabled: false
api:
  enabled: false
logging:
  level: error
`))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("LWM2M_CONFIG", "")
	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}

	expected := "/custom/path/config.yaml"
	t.Setenv("LWM2M_CONFIG", expected)
	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("LWM2M_JWT_SECRET", "0123456789abcdef0123456789abcdef")

	t.Run("file", func(t *testing.T) {
		cfg, err := loadConfig(writeConfig(t, "server:\n  id: from-file\n"))
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.Server.ID != "from-file" {
			t.Errorf("Server.ID = %q, want from-file", cfg.Server.ID)
		}
	})

	t.Run("missing explicit file", func(t *testing.T) {
		if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("loadConfig() expected error")
		}
	})

	t.Run("missing default file", func(t *testing.T) {
		wd, err := os.Getwd()
		if err != nil {
			t.Fatalf("Getwd() error = %v", err)
		}
		if err := os.Chdir(t.TempDir()); err != nil {
			t.Fatalf("Chdir() error = %v", err)
		}
		t.Cleanup(func() { _ = os.Chdir(wd) })
		cfg, err := loadConfig(defaultConfigPath)
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.API.Port != 8080 {
			t.Errorf("API.Port = %d, want default 8080", cfg.API.Port)
		}
	})
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	custom := `id: 32769
name: Custom Counter
resources:
  count:
    id: 0
    type: Integer
    required: true
`
	if err := os.WriteFile(filepath.Join(dir, "32769-counter.yaml"), []byte(custom), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	builtin, err := loadCatalog(config.ObjectsConfig{})
	if err != nil {
		t.Fatalf("loadCatalog() error = %v", err)
	}
	extended, err := loadCatalog(config.ObjectsConfig{Dir: dir})
	if err != nil {
		t.Fatalf("loadCatalog(dir) error = %v", err)
	}

	if extended.Len() != builtin.Len()+1 {
		t.Errorf("extended catalog has %d objects, want %d", extended.Len(), builtin.Len()+1)
	}
	if _, err := extended.Lookup(32769); err != nil {
		t.Errorf("Lookup(32769) error = %v", err)
	}
	if _, err := extended.Lookup(objects.Temperature); err != nil {
		t.Errorf("Lookup(Temperature) error = %v", err)
	}
}

type staticCheck struct{ err error }

func (c staticCheck) HealthCheck(context.Context) error { return c.err }

func TestHealthCheck(t *testing.T) {
	ctx := context.Background()
	if err := healthCheck(ctx, nil); err != nil {
		t.Errorf("healthCheck(nil) error = %v", err)
	}

	down := errors.New("down")
	checks := map[string]api.HealthChecker{
		"database": staticCheck{},
		"mqtt":     staticCheck{err: down},
	}
	if err := healthCheck(ctx, checks); !errors.Is(err, down) {
		t.Errorf("healthCheck() error = %v, want %v", err, down)
	}
}

func TestIssueToken(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	t.Setenv("LWM2M_CONFIG", writeConfig(t, "server:\n  id: test\nsecurity:\n  jwt:\n    secret: \""+secret+"\"\n"))

	var out strings.Builder
	if err := issueToken([]string{"-subject", "gw-east", "-role", "gateway"}, &out); err != nil {
		t.Fatalf("issueToken() error = %v", err)
	}
	claims, err := api.ParseToken(strings.TrimSpace(out.String()), secret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "gw-east" || claims.Role != api.RoleGateway {
		t.Errorf("claims = %+v", claims)
	}
	if life := claims.ExpiresAt.Sub(claims.IssuedAt.Time); life != 24*time.Hour {
		t.Errorf("token lifetime = %v, want default 24h", life)
	}

	tests := []struct {
		name string
		args []string
	}{
		{name: "no subject", args: []string{"-role", "admin"}},
		{name: "unknown role", args: []string{"-subject", "x", "-role", "owner"}},
		{name: "unknown flag", args: []string{"-bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := issueToken(tt.args, io.Discard); err == nil {
				t.Error("issueToken() expected error")
			}
		})
	}
}
