package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotgluexyz/target-sendgrid/internal/domain"
)

func TestFileBackend_RoundTripsSingerDocument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	cp := NewCheckpoint("file", NewFileBackend(path))

	require.NoError(t, cp.Update(ctx, "Contacts", domain.SuccessEntry(), domain.UpdatedEntry()))
	require.NoError(t, cp.Init(ctx, "Customers"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.JSONEq(t, `[{"success":true},{"is_updated":true,"success":true}]`, string(doc["bookmarks"]["Contacts"]))
	assert.JSONEq(t, `[]`, string(doc["bookmarks"]["Customers"]))
	assert.JSONEq(t, `{"success":1,"fail":0,"existing":0,"updated":1}`, string(doc["summary"]["Contacts"]))

	// A fresh backend on the same file sees the persisted state.
	reopened := NewCheckpoint("file", NewFileBackend(path))
	latest, err := reopened.Latest(ctx, "Contacts")
	require.NoError(t, err)
	assert.Len(t, latest.Bookmarks, 2)
}

func TestFileBackend_MissingAndEmptyFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	b := NewFileBackend(path)

	s, err := b.Load(ctx, "Contacts")
	require.NoError(t, err)
	assert.Nil(t, s)

	require.NoError(t, os.WriteFile(path, nil, 0o644))
	s, err = b.Load(ctx, "Contacts")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestFileBackend_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileBackend(path).Load(context.Background(), "Contacts")
	assert.Error(t, err)
}
