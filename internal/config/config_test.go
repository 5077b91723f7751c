package config

import (
	"os"
	"path/filepath"
	"testing"

	apperrors "scrapbook/cli/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_MissingFileReturnsDefaults(t *testing.T) {
	c, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultLanguage, c.Scrapbook.Language)
	assert.Equal(t, DefaultExtension, c.Scrapbook.Extension)
	assert.Equal(t, DefaultShellCommand, c.Shell.Command)
	assert.Equal(t, DefaultEndpoint, c.Management.Endpoint)
	assert.Empty(t, c.Accounts)
}

func TestLoadFrom_ParsesAccounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `log_level: debug
scrapbook:
  extension: mongo
accounts:
  - name: local
    kind: mongo
    connection: "${TEST_SCRAPBOOK_URI}"
  - name: cosmos
    kind: mongo
    resource_id: /subscriptions/sub/resourceGroups/rg/providers/Microsoft.DocumentDB/databaseAccounts/cosmos
  - name: pg
    kind: postgres
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	t.Setenv("TEST_SCRAPBOOK_URI", "mongodb://localhost:27017")

	c, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, ".mongo", c.Scrapbook.Extension)
	require.Len(t, c.Accounts, 3)

	local, ok := c.Account("local")
	require.True(t, ok)
	assert.Equal(t, "${TEST_SCRAPBOOK_URI}", local.Connection)
	assert.Equal(t, "mongodb://localhost:27017", local.ResolvedConnection())

	_, ok = c.Account("nope")
	assert.False(t, ok)
}

func TestLoadFrom_StrictRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("unknown_field: 1\n"), 0o600))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		accounts []Account
		wantErr  bool
	}{
		{"valid", []Account{{Name: "a", Kind: KindMongo}, {Name: "b", Kind: KindPostgres}}, false},
		{"missing name", []Account{{Kind: KindMongo}}, true},
		{"slash in name", []Account{{Name: "a/b", Kind: KindMongo}}, true},
		{"duplicate", []Account{{Name: "a", Kind: KindMongo}, {Name: "a", Kind: KindMongo}}, true},
		{"unknown kind", []Account{{Name: "a", Kind: "cassandra"}}, true},
		{"bad resource id", []Account{{Name: "a", Kind: KindMongo, ResourceID: "accounts/a"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Accounts: tt.accounts}
			err := c.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.ConfigInvalid, apperrors.KindOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAddRemoveAccount(t *testing.T) {
	c := Default()
	require.NoError(t, c.AddAccount(Account{Name: "local", Kind: KindMongo}))
	assert.Error(t, c.AddAccount(Account{Name: "local", Kind: KindMongo}))
	assert.Error(t, c.AddAccount(Account{Name: "bad", Kind: "x"}))
	assert.Len(t, c.Accounts, 1)

	assert.True(t, c.RemoveAccount("local"))
	assert.False(t, c.RemoveAccount("local"))
	assert.Empty(t, c.Accounts)
}

func TestSaveTo_RoundTripKeepsUnexpandedConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	t.Setenv("TEST_SCRAPBOOK_SECRET", "mongodb://u:p@h")

	c := Default()
	require.NoError(t, c.AddAccount(Account{Name: "env", Kind: KindMongo, Connection: "${TEST_SCRAPBOOK_SECRET}"}))
	require.NoError(t, SaveTo(path, c))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "u:p@h")

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	acct, ok := loaded.Account("env")
	require.True(t, ok)
	assert.Equal(t, "mongodb://u:p@h", acct.ResolvedConnection())
}

func TestIsScrapbookFile(t *testing.T) {
	c := Default()
	assert.True(t, c.IsScrapbookFile("/tmp/Scrapbook-1.mongo"))
	assert.True(t, c.IsScrapbookFile("notes.MONGO"))
	assert.False(t, c.IsScrapbookFile("notes.js"))
}
