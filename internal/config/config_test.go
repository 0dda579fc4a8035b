package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func memoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("REMOTE", "memory")
	unsetEnv(t, "CONFIG", "SERVER_ADDRESS", "SYNC_INTERVAL", "LOG_LEVEL", "TIMEZONE")
}

// unsetEnv removes keys for the duration of the test. An empty value would
// still count as set.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "timekeeper.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	return path
}

func TestParse_Defaults(t *testing.T) {
	memoryEnv(t)

	opts, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:8080" {
		t.Errorf("Addr = %q; want localhost:8080", opts.Addr)
	}
	if opts.SyncInterval != time.Minute || opts.ProbeInterval != 15*time.Second || opts.RequestTimeout != 10*time.Second {
		t.Errorf("unexpected intervals: %+v", opts)
	}
	if opts.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want info", opts.LogLevel)
	}
	if !strings.HasSuffix(opts.CachePath, "timer-storage.json") {
		t.Errorf("CachePath = %q; want default cache file", opts.CachePath)
	}
	if opts.Location() != time.Local {
		t.Errorf("Location = %v; want Local", opts.Location())
	}
}

func TestParse_FlagsThenEnv(t *testing.T) {
	memoryEnv(t)
	t.Setenv("SERVER_ADDRESS", "127.0.0.1:9999")

	opts, err := Parse([]string{"-a", "0.0.0.0:1", "-user", "u1", "-sync", "30s", "-tz", "UTC"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "127.0.0.1:9999" {
		t.Errorf("Addr = %q; environment must override flags", opts.Addr)
	}
	if opts.UserID != "u1" || opts.SyncInterval != 30*time.Second {
		t.Errorf("flags not applied: %+v", opts)
	}
	if opts.Location() != time.UTC {
		t.Errorf("Location = %v; want UTC", opts.Location())
	}
}

func TestParse_File(t *testing.T) {
	memoryEnv(t)
	path := writeYAML(t, `
remote: postgrest
remote_url: "https://example.supabase.co"
api_key: "anon"
sync_interval: "2m"
log_level: "debug"
`)
	unsetEnv(t, "REMOTE")
	t.Setenv("LOG_LEVEL", "warn")

	opts, err := Parse([]string{"-c", path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Remote != RemotePostgREST || opts.RemoteURL != "https://example.supabase.co" {
		t.Errorf("file values not applied: %+v", opts)
	}
	if opts.SyncInterval != 2*time.Minute {
		t.Errorf("SyncInterval = %s; want 2m", opts.SyncInterval)
	}
	if opts.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; environment must override the file", opts.LogLevel)
	}
}

func TestParse_MissingExplicitFile(t *testing.T) {
	memoryEnv(t)
	t.Setenv("CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

	if _, err := Parse(nil); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Options {
		return Options{
			Remote:         RemoteMemory,
			ProbeInterval:  time.Second,
			SyncInterval:   time.Second,
			RequestTimeout: time.Second,
			Timezone:       "UTC",
		}
	}
	cases := []struct {
		name   string
		mutate func(o *Options)
		want   string
	}{
		{"ok", func(*Options) {}, ""},
		{"unknown remote", func(o *Options) { o.Remote = "ftp" }, "unknown remote"},
		{"postgrest without url", func(o *Options) { o.Remote = RemotePostgREST; o.APIKey = "k" }, "SUPABASE_URL"},
		{"postgrest without key", func(o *Options) { o.Remote = RemotePostgREST; o.RemoteURL = "https://x" }, "SUPABASE_ANON_KEY"},
		{"postgres without dsn", func(o *Options) { o.Remote = RemotePostgres; o.UserID = "u" }, "DSN"},
		{"postgres without user", func(o *Options) { o.Remote = RemotePostgres; o.DatabaseDSN = "postgres://" }, "user id"},
		{"zero interval", func(o *Options) { o.SyncInterval = 0 }, "sync interval"},
		{"bad timezone", func(o *Options) { o.Timezone = "Mars/Olympus" }, "timezone"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := valid()
			tc.mutate(&o)
			err := o.Validate()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Validate() = %v; want error containing %q", err, tc.want)
			}
		})
	}
}
