package config

import (
	"os"
	"testing"
	"time"
)

func TestEnvironmentIsDevelopment(t *testing.T) {
	cases := []struct {
		env  Environment
		want bool
	}{
		{"development", true},
		{"dev", true},
		{" DEV ", true},
		{"Development", true},
		{"prod", false},
		{"production", false},
		{"staging", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := tc.env.IsDevelopment(); got != tc.want {
			t.Fatalf("IsDevelopment(%q) = %v, want %v", tc.env, got, tc.want)
		}
	}
}

func TestLoadAPIConfigDefaults(t *testing.T) {
	cfg, err := LoadAPIConfig()
	if err != nil {
		t.Fatalf("LoadAPIConfig returned error: %v", err)
	}
	if cfg.Addr != ":4000" {
		t.Fatalf("unexpected addr: %q", cfg.Addr)
	}
	if cfg.DatabaseDriver != DriverPostgres {
		t.Fatalf("unexpected driver: %q", cfg.DatabaseDriver)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("unexpected access ttl: %v", cfg.AccessTokenTTL)
	}
	if cfg.SeedRequireAuth {
		t.Fatalf("seed auth should be opt-in")
	}
}

func TestLoadAPIConfigUnsetEnvironmentIsNotDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "")
	os.Unsetenv("APP_ENV")

	cfg, err := LoadAPIConfig()
	if err != nil {
		t.Fatalf("LoadAPIConfig returned error: %v", err)
	}
	if cfg.Environment != "" || cfg.Environment.IsDevelopment() {
		t.Fatalf("unset APP_ENV must not enable development mode, got %q", cfg.Environment)
	}
}

func TestLoadAPIConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("REFRESH_TOKEN_TTL", "2h")
	t.Setenv("SEED_REQUIRE_AUTH", "true")
	t.Setenv("BCRYPT_COST", "4")

	cfg, err := LoadAPIConfig()
	if err != nil {
		t.Fatalf("LoadAPIConfig returned error: %v", err)
	}
	if cfg.Environment != EnvProduction || cfg.Environment.IsDevelopment() {
		t.Fatalf("unexpected environment: %q", cfg.Environment)
	}
	if cfg.DatabaseDriver != DriverSQLite {
		t.Fatalf("unexpected driver: %q", cfg.DatabaseDriver)
	}
	if cfg.RefreshTokenTTL != 2*time.Hour {
		t.Fatalf("unexpected refresh ttl: %v", cfg.RefreshTokenTTL)
	}
	if !cfg.SeedRequireAuth || cfg.BcryptCost != 4 {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

func TestLoadAPIConfigRejectsBadDuration(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "soon")
	if _, err := LoadAPIConfig(); err == nil {
		t.Fatalf("expected parse error for invalid duration")
	}
}
