package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadConfigBaseOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "db:\n  host: localhost\n  port: 5432\n")

	cfg, err := LoadConfig("local", dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	db, ok := cfg["db"].(map[string]interface{})
	if !ok {
		t.Fatalf("db section = %T", cfg["db"])
	}
	if db["host"] != "localhost" {
		t.Fatalf("host = %v", db["host"])
	}
}

func TestLoadConfigEnvOverridesBase(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "db:\n  host: localhost\n  port: 5432\nserver:\n  port: \":8080\"\n")
	writeFile(t, dir, "production.yaml", "db:\n  host: db.internal\n")

	cfg, err := LoadConfig("production", dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	db := cfg["db"].(map[string]interface{})
	if db["host"] != "db.internal" {
		t.Fatalf("host = %v, env file should win", db["host"])
	}
	if db["port"] != 5432 {
		t.Fatalf("port = %v, base value should survive the merge", db["port"])
	}
	if _, ok := cfg["server"]; !ok {
		t.Fatal("untouched base sections should survive")
	}
}

func TestLoadConfigMissingEnvFileIsFine(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "db:\n  host: localhost\n")

	if _, err := LoadConfig("staging", dir); err != nil {
		t.Fatalf("missing env yaml should not error: %v", err)
	}
}

func TestLoadConfigMissingBaseFails(t *testing.T) {
	if _, err := LoadConfig("local", t.TempDir()); err == nil {
		t.Fatal("missing base.yaml should error")
	}
}

func TestLoadConfigSecretsSubstitution(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "db:\n  password: ${DB_PASSWORD}\nauth:\n  secret: ${AUTH_SECRET}\n")
	writeFile(t, dir, "secrets.env", "DB_PASSWORD=s3cret\n# comment line\nAUTH_SECRET=\"quoted\"\n")

	cfg, err := LoadConfig("local", dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	db := cfg["db"].(map[string]interface{})
	if db["password"] != "s3cret" {
		t.Fatalf("password = %v", db["password"])
	}
	authSection := cfg["auth"].(map[string]interface{})
	if authSection["secret"] != "quoted" {
		t.Fatalf("secret = %v, quotes should be stripped", authSection["secret"])
	}
}

func TestGetEnvDefault(t *testing.T) {
	t.Setenv("TASKHUB_TEST_VAR", "")
	if got := GetEnv("TASKHUB_TEST_VAR", "fallback"); got != "fallback" {
		t.Fatalf("GetEnv = %q", got)
	}

	t.Setenv("TASKHUB_TEST_VAR", "set")
	if got := GetEnv("TASKHUB_TEST_VAR", "fallback"); got != "set" {
		t.Fatalf("GetEnv = %q", got)
	}
}

func TestOverrideDBFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "override-host")
	t.Setenv("DB_PORT", "5433")

	cfg := DBConfig{Host: "localhost", Port: 5432, User: "u"}
	OverrideDBFromEnv(&cfg)

	if cfg.Host != "override-host" {
		t.Fatalf("host = %q", cfg.Host)
	}
	if cfg.Port != 5433 {
		t.Fatalf("port = %d", cfg.Port)
	}
	if cfg.User != "u" {
		t.Fatalf("user = %q, unset vars should not clobber", cfg.User)
	}
}
