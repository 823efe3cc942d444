package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/messagemedia/shmop/pkg/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metrics.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_ParsesJSONCWithComments(t *testing.T) {
	path := writeConfig(t, `{
		// demo config
		"name": "soapxml",
		"version": 100,
		"metrics": [
			{"type": "counter", "name": "things", "pcp_cluster": 0, "pcp_item": 0}
		]
	}`)

	f, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "soapxml", f.Name)
	require.Equal(t, uint32(100), f.Version)
	require.Len(t, f.Metrics, 1)
	require.True(t, f.Writable())
}

func TestLoad_DefaultsVersionToOne(t *testing.T) {
	path := writeConfig(t, `{"name": "x", "metrics": []}`)

	f, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, uint32(1), f.Version)
}

func TestFile_Writable_ReadOnlyMode(t *testing.T) {
	path := writeConfig(t, `{"name": "x", "mode": "read-only", "metrics": []}`)

	f, err := config.Load(path)
	require.NoError(t, err)
	require.False(t, f.Writable())
}

func TestLoad_InvalidJSONReturnsError(t *testing.T) {
	path := writeConfig(t, `{not json`)

	_, err := config.Load(path)
	require.Error(t, err)
}
