package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/easelflow/pkg/flow/config"
)

// TestFromYAML verifies YAML parsing.
func TestFromYAML(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(*testing.T, config.Config)
	}{
		{
			"simple values",
			`name: alice
count: 42
enabled: true`,
			false,
			func(t *testing.T, cfg config.Config) {
				assert.Equal(t, "alice", cfg.String("name", ""))
				assert.Equal(t, 42, cfg.Int("count", 0))
				assert.True(t, cfg.Bool("enabled", false))
			},
		},
		{
			"nested structure via dotted path",
			`server:
  addr: ":9000"
  read_timeout: 5s`,
			false,
			func(t *testing.T, cfg config.Config) {
				assert.Equal(t, ":9000", cfg.String("server.addr", ""))
				assert.Equal(t, 5*time.Second, cfg.Duration("server.read_timeout", 0))
			},
		},
		{
			"list values",
			`tags:
  - alpha
  - beta`,
			false,
			func(t *testing.T, cfg config.Config) {
				assert.Equal(t, []string{"alpha", "beta"}, cfg.StringSlice("tags", nil))
			},
		},
		{
			"empty yaml",
			``,
			false,
			func(t *testing.T, cfg config.Config) {
				assert.False(t, cfg.Has("anything"))
			},
		},
		{
			"invalid yaml",
			`invalid: yaml: content:`,
			true,
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.FromYAML([]byte(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

// TestFromJSON verifies JSON parsing. JSON numbers arrive as float64
// and must still resolve through Int and Duration.
func TestFromJSON(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr bool
		check   func(*testing.T, config.Config)
	}{
		{
			"simple values",
			`{"name": "bob", "count": 100, "enabled": false}`,
			false,
			func(t *testing.T, cfg config.Config) {
				assert.Equal(t, "bob", cfg.String("name", ""))
				assert.Equal(t, 100, cfg.Int("count", 0))
				assert.False(t, cfg.Bool("enabled", true))
			},
		},
		{
			"nested structure",
			`{"sync": {"debounce": 250}}`,
			false,
			func(t *testing.T, cfg config.Config) {
				assert.Equal(t, 250*time.Millisecond, cfg.Duration("sync.debounce", 0))
			},
		},
		{
			"array values",
			`{"items": ["one", "two"]}`,
			false,
			func(t *testing.T, cfg config.Config) {
				assert.Equal(t, []string{"one", "two"}, cfg.StringSlice("items", nil))
			},
		},
		{
			"invalid json",
			`{invalid json}`,
			true,
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.FromJSON([]byte(tt.json))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

// TestFromFile verifies file loading with extension detection.
func TestFromFile(t *testing.T) {
	tmpDir := t.TempDir()

	yamlPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("name: fromyaml\nvalue: 123"), 0o644))

	ymlPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(ymlPath, []byte("name: fromyml"), 0o644))

	jsonPath := filepath.Join(tmpDir, "config.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"name": "fromjson"}`), 0o644))

	txtPath := filepath.Join(tmpDir, "config.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("content"), 0o644))

	tests := []struct {
		name    string
		path    string
		wantErr string
		want    string
	}{
		{"yaml file", yamlPath, "", "fromyaml"},
		{"yml file", ymlPath, "", "fromyml"},
		{"json file", jsonPath, "", "fromjson"},
		{"unsupported extension", txtPath, "unsupported config file extension", ""},
		{"file not found", filepath.Join(tmpDir, "nonexistent.yaml"), "read config file", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.FromFile(tt.path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.String("name", ""))
		})
	}
}

// TestFromFile_CaseInsensitiveExtension verifies extension matching
// ignores case.
func TestFromFile_CaseInsensitiveExtension(t *testing.T) {
	tmpDir := t.TempDir()

	yamlPath := filepath.Join(tmpDir, "config.YAML")
	require.NoError(t, os.WriteFile(yamlPath, []byte("name: uppercase"), 0o644))

	cfg, err := config.FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "uppercase", cfg.String("name", ""))
}

// TestLoad verifies file resolution into Settings.
func TestLoad(t *testing.T) {
	t.Run("empty path yields defaults", func(t *testing.T) {
		settings, err := config.Load("")
		require.NoError(t, err)
		assert.Equal(t, config.DefaultAddr, settings.Addr)
		assert.Equal(t, config.DefaultDataDriver, settings.DataDriver)
		assert.Equal(t, config.DefaultSyncDebounce, settings.SyncDebounce)
		assert.Equal(t, config.DefaultLogLevel, settings.LogLevel)
		assert.Zero(t, settings.BatchConcurrency)
		assert.Empty(t, settings.ImageBaseURL)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "easelflow.yaml")
		content := `server:
  addr: ":9100"
data:
  driver: sqlite
  path: /var/lib/easelflow/projects.db
providers:
  image:
    base_url: https://img.internal
    api_key: sk-img
    model: flux-pro
  text:
    api_key: sk-text
storage:
  endpoint: https://blobs.internal/upload
  public_base: https://cdn.internal
sync:
  debounce: 250ms
engine:
  batch_concurrency: 2
log:
  level: debug
  format: json
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		settings, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, ":9100", settings.Addr)
		assert.Equal(t, "sqlite", settings.DataDriver)
		assert.Equal(t, "/var/lib/easelflow/projects.db", settings.DataPath)
		assert.Equal(t, "https://img.internal", settings.ImageBaseURL)
		assert.Equal(t, "sk-img", settings.ImageAPIKey)
		assert.Equal(t, "flux-pro", settings.ImageModel)
		assert.Equal(t, "sk-text", settings.TextAPIKey)
		assert.Equal(t, "https://blobs.internal/upload", settings.StorageEndpoint)
		assert.Equal(t, "https://cdn.internal", settings.StoragePublicBase)
		assert.Equal(t, 250*time.Millisecond, settings.SyncDebounce)
		assert.Equal(t, 2, settings.BatchConcurrency)
		assert.Equal(t, "debug", settings.LogLevel)
		assert.Equal(t, "json", settings.LogFormat)

		// Keys the file left unset still default.
		assert.Empty(t, settings.VideoBaseURL)
		assert.Empty(t, settings.DataDSN)
	})

	t.Run("missing file errors", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

// TestResolve verifies partial configs keep defaults for untouched
// keys.
func TestResolve(t *testing.T) {
	cfg := config.New(map[string]any{
		"data": map[string]any{
			"driver": "postgres",
			"dsn":    "postgres://flow@localhost/easelflow",
		},
		"sync": map[string]any{
			"debounce": 80,
		},
	})

	settings := config.Resolve(cfg)
	assert.Equal(t, "postgres", settings.DataDriver)
	assert.Equal(t, "postgres://flow@localhost/easelflow", settings.DataDSN)
	assert.Equal(t, 80*time.Millisecond, settings.SyncDebounce, "bare numbers are milliseconds")
	assert.Equal(t, config.DefaultAddr, settings.Addr)
	assert.Equal(t, config.DefaultLogFormat, settings.LogFormat)
}
