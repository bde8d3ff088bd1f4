package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sambodhan/libs/grievanceapi"

	"github.com/redis/go-redis/v9"
)

// locationCache stores encoded location lists. A miss is (nil, false, nil).
type locationCache interface {
	get(ctx context.Context, key string) ([]byte, bool, error)
	set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

type memoryCacheEntry struct {
	payload   []byte
	expiresAt time.Time
}

type memoryLocationCache struct {
	mu      sync.Mutex
	entries map[string]memoryCacheEntry
	now     func() time.Time
}

func newMemoryLocationCache() *memoryLocationCache {
	return &memoryLocationCache{entries: make(map[string]memoryCacheEntry), now: time.Now}
}

func (m *memoryLocationCache) get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), entry.payload...), true, nil
}

func (m *memoryLocationCache) set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryCacheEntry{
		payload:   append([]byte(nil), payload...),
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

type redisLocationCache struct {
	client *redis.Client
}

func newRedisLocationCache(client *redis.Client) *redisLocationCache {
	return &redisLocationCache{client: client}
}

func (r *redisLocationCache) get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := r.client.Get(ctx, "sambodhan:location:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return payload, true, nil
}

func (r *redisLocationCache) set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return r.client.Set(ctx, "sambodhan:location:"+key, payload, ttl).Err()
}

// locationDirectory serves districts, municipalities and wards from the
// backend through a TTL cache. Cache errors fall through to the backend.
type locationDirectory struct {
	api   *grievanceapi.Client
	cache locationCache
	ttl   time.Duration
	log   *slog.Logger
}

func newLocationDirectory(api *grievanceapi.Client, cache locationCache, ttl time.Duration, logger *slog.Logger) *locationDirectory {
	if ttl <= 0 {
		ttl = defaultLocationCacheTTL
	}
	return &locationDirectory{api: api, cache: cache, ttl: ttl, log: logger}
}

func cachedList[T any](ctx context.Context, d *locationDirectory, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	if payload, ok, err := d.cache.get(ctx, key); err != nil {
		d.log.WarnContext(ctx, "location cache read failed", "key", key, "error", err)
	} else if ok {
		var cached []T
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
	}

	items, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(items); err == nil {
		if err := d.cache.set(ctx, key, payload, d.ttl); err != nil {
			d.log.WarnContext(ctx, "location cache write failed", "key", key, "error", err)
		}
	}
	return items, nil
}

func (d *locationDirectory) Districts(ctx context.Context) ([]grievanceapi.District, error) {
	return cachedList(ctx, d, "districts", d.api.Districts)
}

func (d *locationDirectory) Municipalities(ctx context.Context, districtID int) ([]grievanceapi.Municipality, error) {
	return cachedList(ctx, d, fmt.Sprintf("municipalities:%d", districtID), func(ctx context.Context) ([]grievanceapi.Municipality, error) {
		return d.api.Municipalities(ctx, districtID)
	})
}

func (d *locationDirectory) Wards(ctx context.Context, municipalityID int) ([]grievanceapi.Ward, error) {
	return cachedList(ctx, d, fmt.Sprintf("wards:%d", municipalityID), func(ctx context.Context) ([]grievanceapi.Ward, error) {
		return d.api.Wards(ctx, municipalityID)
	})
}

// needsEnrichment reports whether the admin is missing a display name that
// the directory can supply.
func needsEnrichment(admin *grievanceapi.Admin) bool {
	if admin.Role == grievanceapi.RoleSuperAdmin && admin.DistrictName == "" && admin.DistrictID != nil {
		return true
	}
	return admin.MunicipalityName == "" && admin.MunicipalityID != nil
}

// enrichAdmin fills in district and municipality names. It returns false when
// nothing changed.
func (d *locationDirectory) enrichAdmin(ctx context.Context, admin *grievanceapi.Admin) (bool, error) {
	if !needsEnrichment(admin) {
		return false, nil
	}
	changed := false

	if admin.MunicipalityName == "" && admin.MunicipalityID != nil {
		municipalities, err := d.Municipalities(ctx, 0)
		if err != nil {
			return false, err
		}
		for _, m := range municipalities {
			if m.ID != *admin.MunicipalityID {
				continue
			}
			admin.MunicipalityName = m.Name
			changed = true
			if admin.DistrictID == nil && m.DistrictID > 0 {
				districtID := m.DistrictID
				admin.DistrictID = &districtID
			}
			break
		}
	}

	if admin.Role == grievanceapi.RoleSuperAdmin && admin.DistrictName == "" && admin.DistrictID != nil {
		districts, err := d.Districts(ctx)
		if err != nil {
			return changed, err
		}
		for _, district := range districts {
			if district.ID == *admin.DistrictID {
				admin.DistrictName = district.Name
				changed = true
				break
			}
		}
	}
	return changed, nil
}
