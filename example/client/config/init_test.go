package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	iec104 "github.com/9d77v/iec104client"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
client:
  host: 192.168.1.10
  t3: 30s
  strict_sequence: false
debug: true
output: out.jsonl
`), 0644))

	t.Setenv("SERVER_HOST", "")
	t.Setenv("SERVER_PORT", "2405")
	t.Setenv("DEBUG", "")
	t.Setenv("LOG_FILE", "")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.10", s.Client.Host)
	assert.Equal(t, 2405, s.Client.Port)
	assert.Equal(t, 30*time.Second, s.Client.T3)
	assert.Equal(t, iec104.DefaultT1, s.Client.T1)
	assert.False(t, s.Client.StrictSequence)
	assert.True(t, s.Debug)
	assert.Equal(t, "out.jsonl", s.Output)
	assert.Empty(t, s.LogFile)
	require.NoError(t, s.Client.Valid())
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("SERVER_HOST", "10.1.1.1")
	t.Setenv("SERVER_PORT", "")
	s, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "10.1.1.1", s.Client.Host)
	assert.Equal(t, iec104.DefaultPort, s.Client.Port)
	assert.True(t, s.Client.StrictSequence)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{"BadYAML", "client: [\n", nil},
		{"BadPort", "", map[string]string{"SERVER_PORT": "abc"}},
		{"BadDebug", "", map[string]string{"DEBUG": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0644))
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	s := &Settings{}
	c, err := s.LoadCatalog()
	require.NoError(t, err)
	assert.Same(t, iec104.DefaultCatalog(), c)

	s.Catalog = filepath.Join(t.TempDir(), "none.yaml")
	_, err = s.LoadCatalog()
	assert.Error(t, err)
}
