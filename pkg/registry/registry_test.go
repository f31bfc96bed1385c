package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_HasEveryDocumentShape(t *testing.T) {
	reg := Default()
	for _, id := range []string{SchemaRequest, SchemaResponse, SchemaDonorProfile, SchemaUserProfile} {
		_, err := reg.Find(id)
		assert.NoError(t, err, id)
	}

	def, err := reg.ForCollection("Bloodreceiver")
	require.NoError(t, err)
	assert.Equal(t, SchemaRequest, def.ID, "embedded response schema is not the collection schema")

	_, err = reg.Find("nope")
	assert.True(t, errors.Is(err, ErrSchemaNotFound))
}

func TestValidate_Response(t *testing.T) {
	reg := Default()

	tests := []struct {
		name    string
		data    map[string]interface{}
		wantErr bool
	}{
		{
			name: "valid accept",
			data: map[string]interface{}{
				"donorUid": "d1", "donorName": "Ravi", "status": "accepted",
				"respondedAt": "2026-03-12T08:00:00Z", "seenByReceiver": false,
			},
		},
		{
			name: "unknown status",
			data: map[string]interface{}{
				"donorUid": "d1", "donorName": "Ravi", "status": "maybe",
				"respondedAt": "2026-03-12T08:00:00Z", "seenByReceiver": false,
			},
			wantErr: true,
		},
		{
			name:    "missing donor",
			data:    map[string]interface{}{"status": "declined", "respondedAt": "2026-03-12T08:00:00Z", "seenByReceiver": false},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Validate(SchemaResponse, tt.data)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.NotEmpty(t, vErr.Problems)
		})
	}
}

func TestValidate_RequestNeedsEssentials(t *testing.T) {
	reg := Default()
	assert.NoError(t, reg.Validate(SchemaRequest, map[string]interface{}{
		"uid": "r", "city": "Pune", "bloodGroup": "O+", "bloodUnits": float64(2),
	}))
	assert.Error(t, reg.Validate(SchemaRequest, map[string]interface{}{"uid": "r", "city": "Pune"}))
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":"2","schemas":[{"id":"x","schema":{}}]}`), 0o644))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, "2", reg.Version)
	assert.NoError(t, reg.Validate("x", map[string]interface{}{"anything": true}))

	_, err = LoadRegistry(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
