package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/indextec/unit-uploader/internal/config"
)

// TestConfigCmd tests the config command group
func TestConfigCmd(t *testing.T) {
	cmd := newConfigCmd()
	if cmd.Use != "config" {
		t.Errorf("Expected Use='config', got '%s'", cmd.Use)
	}

	expectedSubs := []string{"init", "show", "test", "path"}
	if len(cmd.Commands()) != len(expectedSubs) {
		t.Errorf("Expected %d subcommands, got %d", len(expectedSubs), len(cmd.Commands()))
	}

	found := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		found[sub.Name()] = true
		if sub.Short == "" {
			t.Errorf("Subcommand '%s' has no short description", sub.Name())
		}
	}
	for _, expected := range expectedSubs {
		if !found[expected] {
			t.Errorf("Subcommand '%s' not found", expected)
		}
	}
}

// TestConfigInit tests the config init command structure
func TestConfigInit(t *testing.T) {
	cmd := newConfigInitCmd()
	if cmd.RunE == nil {
		t.Error("RunE function is nil")
	}
	if cmd.Flags().Lookup("force") == nil {
		t.Error("--force flag not found")
	}
}

func TestConfigInit_WritesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.csv")
	cfgFile = configPath
	t.Cleanup(func() { cfgFile = "" })

	answers := strings.Join([]string{
		"",                                 // backend: http
		"https://upload.example.com/files", // upload endpoint
		"",                                 // folder id
		"https://hooks.example.com/done",   // webhook
		"https://api.example.com/units",    // listing
		"25",                               // page size
		"y",                                // requires association
		"",                                 // proxy mode: no-proxy
	}, "\n") + "\n"

	cmd := newConfigInitCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(answers))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init failed: %v\n%s", err, out.String())
	}

	cfg, err := config.LoadConfigCSV(configPath)
	if err != nil {
		t.Fatalf("Failed to load written config: %v", err)
	}
	if cfg.UploadEndpoint != "https://upload.example.com/files" {
		t.Errorf("UploadEndpoint = %q", cfg.UploadEndpoint)
	}
	if cfg.WebhookEndpoint != "https://hooks.example.com/done" {
		t.Errorf("WebhookEndpoint = %q", cfg.WebhookEndpoint)
	}
	if cfg.PageSize != 25 {
		t.Errorf("PageSize = %d, want 25", cfg.PageSize)
	}
	if !cfg.RequiresAssociation {
		t.Error("RequiresAssociation should be true")
	}

	// A second run without --force leaves the file alone
	before, _ := os.ReadFile(configPath)
	cmd = newConfigInitCmd()
	out.Reset()
	cmd.SetIn(strings.NewReader(""))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("second config init failed: %v", err)
	}
	after, _ := os.ReadFile(configPath)
	if !bytes.Equal(before, after) {
		t.Error("existing config was overwritten without --force")
	}
	if !strings.Contains(out.String(), "already exists") {
		t.Errorf("expected 'already exists' notice, got:\n%s", out.String())
	}
}

func TestConfigShow_MasksSecrets(t *testing.T) {
	cfgFile = filepath.Join(t.TempDir(), "missing.csv")
	t.Cleanup(func() { cfgFile = "" })
	t.Setenv("UPLOADER_LISTING_TOKEN", "supersecret-1234")

	cmd := newConfigShowCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config show failed: %v", err)
	}

	got := out.String()
	if strings.Contains(got, "supersecret") {
		t.Errorf("secret leaked in output:\n%s", got)
	}
	if !strings.Contains(got, "****1234") {
		t.Errorf("masked token missing from output:\n%s", got)
	}
	if !strings.Contains(got, "file does not exist") {
		t.Errorf("missing-file notice not shown:\n%s", got)
	}
}

func TestConfigPath(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "custom.csv")
	cfgFile = want
	t.Cleanup(func() { cfgFile = "" })

	cmd := newConfigPathCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != want {
		t.Errorf("path = %q", out.String())
	}
}
