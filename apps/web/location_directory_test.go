package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"sambodhan/libs/grievanceapi"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocationCacheExpires(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	cache := newMemoryLocationCache()
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, cache.set(ctx, "districts", []byte(`[1]`), time.Minute))

	payload, ok, err := cache.get(ctx, "districts")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`[1]`), payload)

	now = now.Add(time.Minute)
	_, ok, err = cache.get(ctx, "districts")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = cache.get(ctx, "wards:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func newLocationTestDirectory(t *testing.T, cache locationCache) (*locationDirectory, map[string]*atomic.Int32) {
	t.Helper()
	hits := map[string]*atomic.Int32{
		"districts":      {},
		"municipalities": {},
		"wards":          {},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/location/districts", func(w http.ResponseWriter, r *http.Request) {
		hits["districts"].Add(1)
		_, _ = io.WriteString(w, `[{"id": 3, "name": "Lalitpur"}, {"id": 4, "name": "Kathmandu"}]`)
	})
	mux.HandleFunc("GET /api/location/municipalities", func(w http.ResponseWriter, r *http.Request) {
		hits["municipalities"].Add(1)
		_, _ = io.WriteString(w, `{"data": [{"id": 12, "name": "Lalitpur Metropolitan City", "district_id": 3}]}`)
	})
	mux.HandleFunc("GET /api/location/wards", func(w http.ResponseWriter, r *http.Request) {
		hits["wards"].Add(1)
		_, _ = io.WriteString(w, `[{"id": 4, "ward_number": 4, "municipality_id": 12}]`)
	})
	api := grievanceapi.New("http://backend.test/api", grievanceapi.WithHTTPClient(&http.Client{Transport: inProcessTransport{mux: mux}}))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newLocationDirectory(api, cache, time.Minute, logger), hits
}

func TestLocationDirectoryCachesBackendLists(t *testing.T) {
	directory, hits := newLocationTestDirectory(t, newMemoryLocationCache())
	ctx := context.Background()

	for range 3 {
		districts, err := directory.Districts(ctx)
		require.NoError(t, err)
		assert.Equal(t, []grievanceapi.District{{ID: 3, Name: "Lalitpur"}, {ID: 4, Name: "Kathmandu"}}, districts)
	}
	assert.Equal(t, int32(1), hits["districts"].Load())

	_, err := directory.Wards(ctx, 12)
	require.NoError(t, err)
	_, err = directory.Wards(ctx, 13)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits["wards"].Load(), "each municipality has its own key")
}

type failingLocationCache struct{}

func (failingLocationCache) get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, assert.AnError
}

func (failingLocationCache) set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return assert.AnError
}

func TestLocationDirectoryFallsThroughCacheErrors(t *testing.T) {
	directory, hits := newLocationTestDirectory(t, failingLocationCache{})

	for range 2 {
		districts, err := directory.Districts(context.Background())
		require.NoError(t, err)
		assert.Len(t, districts, 2)
	}
	assert.Equal(t, int32(2), hits["districts"].Load())
}

func TestLocationDirectoryEnrichAdmin(t *testing.T) {
	directory, _ := newLocationTestDirectory(t, newMemoryLocationCache())
	ctx := context.Background()

	admin := grievanceapi.Admin{ID: 7, Role: grievanceapi.RoleMunicipalAdmin, MunicipalityID: intPtr(12)}
	changed, err := directory.enrichAdmin(ctx, &admin)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Lalitpur Metropolitan City", admin.MunicipalityName)
	assert.Equal(t, intPtr(3), admin.DistrictID)

	super := grievanceapi.Admin{ID: 1, Role: grievanceapi.RoleSuperAdmin, DistrictID: intPtr(4)}
	changed, err = directory.enrichAdmin(ctx, &super)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Kathmandu", super.DistrictName)

	named := municipalAdmin()
	changed, err = directory.enrichAdmin(ctx, &named)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRedisLocationCache(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	cache := newRedisLocationCache(client)
	key := "test:" + time.Now().Format("150405.000000000")
	defer client.Del(ctx, "sambodhan:location:"+key)

	_, ok, err := cache.get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.set(ctx, key, []byte(`[3]`), time.Minute))
	payload, ok, err := cache.get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`[3]`), payload)
}
