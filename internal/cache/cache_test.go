package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vindiesel/vin-engine/internal/config"
)

// exerciseClient runs the behaviour every driver must share.
func exerciseClient(t *testing.T, c Client) {
	t.Helper()
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, DecodeKey("1hgbh41jxmn109186"), []byte(`{"make":"Honda"}`), time.Hour))
	got, err := c.Get(ctx, "decode:1HGBH41JXMN109186")
	require.NoError(t, err)
	assert.Equal(t, `{"make":"Honda"}`, string(got))

	require.NoError(t, c.Set(ctx, DecodeKey("1HGBH41JXMN109186"), []byte(`{"make":"Acura"}`), time.Hour))
	got, err = c.Get(ctx, DecodeKey("1HGBH41JXMN109186"))
	require.NoError(t, err)
	assert.Equal(t, `{"make":"Acura"}`, string(got))

	require.NoError(t, c.Delete(ctx, DecodeKey("1HGBH41JXMN109186")))
	_, err = c.Get(ctx, DecodeKey("1HGBH41JXMN109186"))
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "decode:A", []byte("a"), time.Hour))
	require.NoError(t, c.Set(ctx, "decode:B", []byte("b"), time.Hour))
	require.NoError(t, c.Set(ctx, "other:C", []byte("c"), time.Hour))
	require.NoError(t, c.DeleteByPrefix(ctx, "decode:"))

	_, err = c.Get(ctx, "decode:A")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "decode:B")
	assert.ErrorIs(t, err, ErrCacheMiss)
	got, err = c.Get(ctx, "other:C")
	require.NoError(t, err)
	assert.Equal(t, "c", string(got))

	assert.NoError(t, c.Ping(ctx))
}

func TestMemoryClient(t *testing.T) {
	c := NewMemoryClient(100)
	defer c.Close()

	exerciseClient(t, c)
}

func TestMemoryClient_Expiry(t *testing.T) {
	c := NewMemoryClient(100)
	defer c.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	c.removeExpired()
	assert.Equal(t, 0, c.Len())
}

func TestMemoryClient_EvictsOldestWhenFull(t *testing.T) {
	c := NewMemoryClient(2)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "long", []byte("2"), time.Hour))
	require.NoError(t, c.Set(ctx, "new", []byte("3"), time.Hour))

	assert.Equal(t, 2, c.Len())
	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "long")
	assert.NoError(t, err)
}

func TestMemoryClient_ReturnsCopies(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	buf := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", buf, time.Hour))
	buf[0] = 'x'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestMemoryClient_CloseTwice(t *testing.T) {
	c := NewMemoryClient(10)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestSQLiteClient(t *testing.T) {
	c, err := OpenSQLite(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	defer c.Close()

	exerciseClient(t, c)
}

func TestSQLiteClient_Expiry(t *testing.T) {
	c, err := OpenSQLite(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	defer c.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, c.Set(ctx, "keep", []byte("v"), time.Hour))

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	n, err := c.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLiteClient_PrefixIsLiteral(t *testing.T) {
	c, err := OpenSQLite(config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a_b", []byte("1"), time.Hour))
	require.NoError(t, c.Set(ctx, "axb", []byte("2"), time.Hour))
	require.NoError(t, c.DeleteByPrefix(ctx, "a_"))

	_, err = c.Get(ctx, "a_b")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "axb")
	assert.NoError(t, err)
}

func TestSQLiteClient_FileReopen(t *testing.T) {
	path := t.TempDir() + "/cache.db"
	cfg := config.SQLiteConfig{Path: path, JournalMode: "WAL"}

	c, err := OpenSQLite(cfg)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), "k", []byte("persisted"), time.Hour))
	require.NoError(t, c.Close())

	c, err = OpenSQLite(cfg)
	require.NoError(t, err)
	defer c.Close()

	got, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(got))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.CacheConfig
		want    interface{}
		wantErr bool
	}{
		{name: "default is memory", cfg: config.CacheConfig{}, want: &MemoryClient{}},
		{name: "memory", cfg: config.CacheConfig{Driver: "memory"}, want: &MemoryClient{}},
		{name: "sqlite", cfg: config.CacheConfig{Driver: "sqlite", SQLite: config.SQLiteConfig{Path: ":memory:"}}, want: &SQLClient{}},
		{name: "postgres without dsn", cfg: config.CacheConfig{Driver: "postgres"}, wantErr: true},
		{name: "unknown", cfg: config.CacheConfig{Driver: "memcached"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer c.Close()
			assert.IsType(t, tt.want, c)
		})
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "decode:1HGBH41JXMN109186", DecodeKey("1hgbh41jxmn109186"))
	assert.Equal(t, "a:b:c", Key("a", "b", "c"))
}
