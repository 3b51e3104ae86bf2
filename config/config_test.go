package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.toml")
	assert.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	check.Equal(t, "info", cfg.Log.Level)
	check.Equal(t, "sealedbid", cfg.Ledger.ProgramID)
	check.Equal(t, 512, cfg.Ledger.CacheSize)
	check.Equal(t, DomainMemory, cfg.Domain.Mode)
	check.Equal(t, 10*time.Second, cfg.Domain.Timeout.Duration)
	check.Equal(t, 2*time.Second, cfg.Crank.Interval.Duration)
	check.True(t, cfg.Crank.Enabled)
	check.Equal(t, "", cfg.Ledger.Path)
	check.Equal(t, "*", cfg.API.AllowedOrigins)
}

func TestLoadNode_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[Ledger]
Path = "/var/lib/sealedbid"
BidRent = 0

[Domain]
Mode = "enclave"
EnclaveCID = 7

[Crank]
Interval = "500ms"
Operator = "house"
`)

	cfg, err := LoadNode(path)
	assert.NoError(t, err)
	check.Equal(t, "/var/lib/sealedbid", cfg.Ledger.Path)
	check.Equal(t, uint64(0), cfg.Ledger.BidRent)
	check.Equal(t, DomainEnclave, cfg.Domain.Mode)
	check.Equal(t, uint32(7), cfg.Domain.EnclaveCID)
	check.Equal(t, uint32(5000), cfg.Domain.EnclavePort)
	check.Equal(t, 500*time.Millisecond, cfg.Crank.Interval.Duration)
	check.Equal(t, "house", cfg.Crank.Operator)
	// Untouched sections keep their defaults
	check.Equal(t, "127.0.0.1:8645", cfg.API.Address)
}

func TestLoadNode_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown domain mode", "[Domain]\nMode = \"remote\"\n[Crank]\nOperator = \"house\"\n"},
		{"bad duration", "[API]\nReadTimeout = \"soon\"\n"},
		{"enclave mode without port", "[Domain]\nMode = \"enclave\"\nEnclavePort = 0\n"},
		{"zero cache", "[Ledger]\nCacheSize = 0\n[Crank]\nOperator = \"house\"\n"},
		{"bad encoding", "[Log]\nEncoding = \"xml\"\n[Crank]\nOperator = \"house\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadNode(writeConfig(t, tt.body))
			check.Error(t, err)
		})
	}
}

func TestLoadNode_MissingFile(t *testing.T) {
	_, err := LoadNode(filepath.Join(t.TempDir(), "absent.toml"))
	check.Error(t, err)
}

func TestLoadNode_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadNode("")
	assert.NoError(t, err)
	check.Equal(t, Default().API.Address, cfg.API.Address)
}
