package main

import (
	"os"
	"path/filepath"
	"testing"

	"feed-sync/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFixture(t *testing.T) {
	f := Fixture{
		"Bloodreceiver": {
			"ok":  {"uid": "rec-1", "city": "Pune", "bloodGroup": "O+", "status": "pending"},
			"bad": {"uid": "rec-1", "status": "pending"},
		},
		"unregistered": {
			"x": {"anything": true},
		},
	}

	problems := validateFixture(registry.Default(), f)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "Bloodreceiver/bad")
}

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"users": {"u1": {"city": "Pune"}}}`), 0o600))

	f, err := loadFixture(path)
	require.NoError(t, err)
	assert.Equal(t, "Pune", f["users"]["u1"]["city"])

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o600))
	_, err = loadFixture(path)
	assert.Error(t, err)
}
