package credentials

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doc2md/backend/internal/models"
)

func TestStore_Load(t *testing.T) {
	tests := []struct {
		name      string
		persisted models.Credentials
		defaults  models.Credentials
		want      models.Credentials
		wantWrite bool
	}{
		{
			name: "nothing anywhere",
			want: models.Credentials{},
		},
		{
			name:      "persisted only",
			persisted: models.Credentials{AccountID: "p-acct", APIToken: "p-tok", SecondaryKey: "p-key"},
			want:      models.Credentials{AccountID: "p-acct", APIToken: "p-tok", SecondaryKey: "p-key"},
		},
		{
			name:      "environment wins and is persisted",
			persisted: models.Credentials{AccountID: "p-acct", APIToken: "p-tok"},
			defaults:  models.Credentials{AccountID: "e-acct", APIToken: "e-tok"},
			want:      models.Credentials{AccountID: "e-acct", APIToken: "e-tok"},
			wantWrite: true,
		},
		{
			name:      "partial environment pair is ignored",
			persisted: models.Credentials{AccountID: "p-acct", APIToken: "p-tok"},
			defaults:  models.Credentials{AccountID: "e-acct"},
			want:      models.Credentials{AccountID: "p-acct", APIToken: "p-tok"},
		},
		{
			name:      "secondary key from environment",
			persisted: models.Credentials{AccountID: "p-acct", APIToken: "p-tok", SecondaryKey: "old"},
			defaults:  models.Credentials{SecondaryKey: "new"},
			want:      models.Credentials{AccountID: "p-acct", APIToken: "p-tok", SecondaryKey: "new"},
			wantWrite: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := &MemoryStorage{creds: tt.persisted}
			store := NewStore(storage, tt.defaults)

			require.NoError(t, store.Load())
			assert.Equal(t, tt.want, store.Get())
			assert.Equal(t, tt.wantWrite, storage.Writes > 0)
			if tt.wantWrite {
				persisted, _ := storage.Read()
				assert.Equal(t, tt.want, persisted)
			}
		})
	}
}

func TestStore_SaveAndClear(t *testing.T) {
	storage := &MemoryStorage{}
	store := NewStore(storage, models.Credentials{})
	require.NoError(t, store.Load())
	assert.Equal(t, StateUnconfigured, store.State())

	saved, err := store.Save(models.Credentials{AccountID: " acct ", APIToken: "tok", SecondaryKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, "acct", saved.AccountID)
	assert.Equal(t, StateConfigured, store.State())

	// An empty secondary key keeps the stored one.
	saved, err = store.Save(models.Credentials{AccountID: "acct2", APIToken: "tok2"})
	require.NoError(t, err)
	assert.Equal(t, "key", saved.SecondaryKey)

	require.NoError(t, store.Clear())
	assert.Equal(t, models.Credentials{}, store.Get())
	assert.Equal(t, StateUnconfigured, store.State())
	persisted, _ := storage.Read()
	assert.Equal(t, models.Credentials{}, persisted)
}

func TestStore_SaveValidation(t *testing.T) {
	store := NewStore(&MemoryStorage{}, models.Credentials{})

	_, err := store.Save(models.Credentials{APIToken: "tok"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account id is required")

	_, err = store.Save(models.Credentials{AccountID: "acct"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api token is required")

	assert.Equal(t, StateUnconfigured, store.State(), "failed save must not change state")
}

func TestStore_ConcurrentReadersSeeWholeSaves(t *testing.T) {
	store := NewStore(&MemoryStorage{}, models.Credentials{})
	pairs := []models.Credentials{
		{AccountID: "a1", APIToken: "t1"},
		{AccountID: "a2", APIToken: "t2"},
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, _ = store.Save(pairs[i%2])
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			c := store.Get()
			if c.AccountID == "" {
				continue
			}
			assert.Equal(t, c.AccountID[1:], c.APIToken[1:])
		}
	}()
	wg.Wait()
}

func TestFileStorage_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "credentials.yaml")
	fs := NewFileStorage(path)

	empty, err := fs.Read()
	require.NoError(t, err)
	assert.Equal(t, models.Credentials{}, empty)

	want := models.Credentials{AccountID: "acct", APIToken: "tok", SecondaryKey: "key"}
	require.NoError(t, fs.Write(want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, _ := os.ReadFile(path)
	assert.Contains(t, string(data), "account_id: acct")

	got, err := fs.Read()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, fs.Clear())
	require.NoError(t, fs.Clear(), "clearing twice is fine")
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
