package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quilldocs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MinimalConfig_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
reference:
  metadata_dir: ./metadata
guides:
  content_dir: ./docs
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "Quill Documentation", cfg.Title)
	require.Equal(t, "quill", cfg.Render.QuillBin)
	require.Equal(t, 30*time.Second, cfg.Render.Timeout)
	require.Equal(t, float64(2), cfg.Render.DefaultScale)
	require.Equal(t, "./site-data", cfg.Output.Dir)
	require.Equal(t, "quilldocs.diagnostics", cfg.Events.Subject)
}

func TestLoad_NoSources_Fails(t *testing.T) {
	path := writeConfig(t, `title: Empty`)

	_, err := Load(path)
	require.ErrorIs(t, err, ErrNoSources)
}

func TestLoad_MissingFile_Fails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_MalformedYAML_Fails(t *testing.T) {
	path := writeConfig(t, "reference: [broken")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("QUILLDOCS_QUILL_BIN", "/opt/quill/bin/quill")
	path := writeConfig(t, `
reference:
  metadata_dir: ./metadata
render:
  quill_bin: ./local-quill
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/opt/quill/bin/quill", cfg.Render.QuillBin)
}

func TestLoad_EnvNATSURLEnablesEvents(t *testing.T) {
	t.Setenv("QUILLDOCS_NATS_URL", "nats://localhost:4222")
	path := writeConfig(t, `
guides:
  content_dir: ./docs
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Events.Enabled)
	require.Equal(t, "nats://localhost:4222", cfg.Events.NATSURL)
}

func TestValidate_EventsEnabledWithoutURL_Fails(t *testing.T) {
	cfg := &Config{
		Guides: GuidesConfig{ContentDir: "./docs"},
		Events: EventsConfig{Enabled: true},
	}
	require.Error(t, cfg.Validate())
}

func TestValidate_NegativeWorkers_Fails(t *testing.T) {
	cfg := &Config{
		Guides: GuidesConfig{ContentDir: "./docs"},
		Render: RenderConfig{Workers: -1},
	}
	require.Error(t, cfg.Validate())
}
