// internal/catalog/cache_test.go
package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	domainerrors "convocore/internal/common/errors"
	"convocore/internal/models"
)

type stubStore struct {
	snapshot *Snapshot
	err      error
	calls    int
}

func (s *stubStore) GetSnapshot(ctx context.Context, tenantID string) (*Snapshot, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.snapshot, nil
}

type testLogger struct{ t *testing.T }

func (l *testLogger) Info(msg string, fields map[string]interface{})  { l.t.Logf("INFO: %s %v", msg, fields) }
func (l *testLogger) Warn(msg string, fields map[string]interface{})  { l.t.Logf("WARN: %s %v", msg, fields) }
func (l *testLogger) Error(msg string, fields map[string]interface{}) { l.t.Logf("ERROR: %s %v", msg, fields) }

func testSnapshot() *Snapshot {
	return &Snapshot{
		Tenant:  &models.Tenant{ID: "pizzashop", Active: true, CatalogVersion: 1},
		Intents: []*models.IntentDefinition{{ID: "booking_intent"}},
	}
}

func TestCacheServesFromMemoryWithinTTL(t *testing.T) {
	stub := &stubStore{snapshot: testSnapshot()}
	cache := NewCache(stub, time.Minute, &testLogger{t})
	ctx := context.Background()

	first, err := cache.GetSnapshot(ctx, "pizzashop")
	assert.NoError(t, err)
	second, err := cache.GetSnapshot(ctx, "pizzashop")
	assert.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, stub.calls)
}

func TestCacheServesStaleOnRefreshFailure(t *testing.T) {
	stub := &stubStore{snapshot: testSnapshot()}
	cache := NewCache(stub, time.Duration(0), &testLogger{t})
	ctx := context.Background()

	first, err := cache.GetSnapshot(ctx, "pizzashop")
	assert.NoError(t, err)

	stub.err = domainerrors.NewCatalogLoadFailedError("pizzashop", assert.AnError)
	second, err := cache.GetSnapshot(ctx, "pizzashop")
	assert.NoError(t, err)
	assert.Same(t, first, second)
}

func TestCacheColdMissSurfacesError(t *testing.T) {
	stub := &stubStore{err: domainerrors.NewCatalogLoadFailedError("pizzashop", assert.AnError)}
	cache := NewCache(stub, time.Minute, &testLogger{t})

	_, err := cache.GetSnapshot(context.Background(), "pizzashop")

	assert.Error(t, err)
	assert.Equal(t, domainerrors.ErrCodeCatalogLoadFailed, domainerrors.CodeOf(err))
}

func TestCacheUnknownTenantNotMaskedByStale(t *testing.T) {
	stub := &stubStore{snapshot: testSnapshot()}
	cache := NewCache(stub, time.Duration(0), &testLogger{t})
	ctx := context.Background()

	_, err := cache.GetSnapshot(ctx, "pizzashop")
	assert.NoError(t, err)

	stub.err = domainerrors.NewUnknownTenantError("pizzashop")
	_, err = cache.GetSnapshot(ctx, "pizzashop")

	assert.Error(t, err)
	assert.Equal(t, domainerrors.ErrCodeUnknownTenant, domainerrors.CodeOf(err))
}

func TestCacheInvalidateForcesReload(t *testing.T) {
	stub := &stubStore{snapshot: testSnapshot()}
	cache := NewCache(stub, time.Minute, &testLogger{t})
	ctx := context.Background()

	_, err := cache.GetSnapshot(ctx, "pizzashop")
	assert.NoError(t, err)

	cache.Invalidate("pizzashop")

	_, err = cache.GetSnapshot(ctx, "pizzashop")
	assert.NoError(t, err)
	assert.Equal(t, 2, stub.calls)
}
