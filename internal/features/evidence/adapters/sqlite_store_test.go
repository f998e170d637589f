package adapters

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"evidence-capture/internal/features/evidence/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()

	store, err := Open(filepath.Join(dir, "evidence.db"), filepath.Join(dir, "screenshots"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

// TestSQLiteStore_CreatePending verifies a new record starts pending with monotonic ids.
func TestSQLiteStore_CreatePending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.CreatePending(ctx, "42", "1Z999AA10123456784", "ups", "https://www.ups.com/track?tracknum=1Z999AA10123456784")
	require.NoError(t, err)

	second, err := store.CreatePending(ctx, "42", "1Z999AA10123456784", "ups", "https://www.ups.com/track?tracknum=1Z999AA10123456784")
	require.NoError(t, err)
	assert.Greater(t, second, first)

	record, err := store.Get(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, record.Status)
	assert.Equal(t, "42", record.ShipmentID)
	assert.Equal(t, "ups", record.Carrier)
	assert.Empty(t, record.ErrorMessage)
	assert.Empty(t, record.ExtractedStatus)
	assert.False(t, record.CreatedAt.IsZero())
	assert.NoError(t, record.Validate())
}

// TestSQLiteStore_Lifecycle verifies the pending -> processing -> completed path.
func TestSQLiteStore_Lifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreatePending(ctx, "42", "1Z999AA10123456784", "ups", "https://example.test")
	require.NoError(t, err)

	require.NoError(t, store.MarkProcessing(ctx, id))

	capturedAt := time.Now().UTC()
	ref, err := store.AttachScreenshot(ctx, id, []byte("png-bytes"), capturedAt)
	require.NoError(t, err)
	assert.Equal(t, "1.png", ref)

	blob, err := os.ReadFile(store.ScreenshotPath(ref))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), blob)

	err = store.MarkCompleted(ctx, id, domain.Extraction{
		Status:   "In Transit",
		Location: "Louisville, KY",
		ETA:      "2026-09-02",
		RawJSON:  `{"status":"In Transit"}`,
	})
	require.NoError(t, err)

	record, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, record.Status)
	assert.Equal(t, "In Transit", record.ExtractedStatus)
	assert.Equal(t, "Louisville, KY", record.ExtractedLocation)
	assert.Equal(t, "2026-09-02", record.ExtractedETA)
	assert.Empty(t, record.ErrorMessage)
	assert.WithinDuration(t, capturedAt, record.CapturedAt, time.Millisecond)
	assert.NoError(t, record.Validate())
}

// TestSQLiteStore_MarkFailed verifies the failed invariants.
func TestSQLiteStore_MarkFailed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreatePending(ctx, "42", "1Z1", "ups", "https://example.test")
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessing(ctx, id))

	require.NoError(t, store.MarkFailed(ctx, id, "capture timed out"))

	record, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, record.Status)
	assert.Equal(t, "capture timed out", record.ErrorMessage)
	assert.Empty(t, record.ExtractedStatus)
	assert.NoError(t, record.Validate())
}

// TestSQLiteStore_TerminalRecordsRejectWrites verifies the immutability guard.
func TestSQLiteStore_TerminalRecordsRejectWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreatePending(ctx, "42", "1Z1", "ups", "https://example.test")
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessing(ctx, id))
	require.NoError(t, store.MarkFailed(ctx, id, "blocked by carrier"))

	assert.ErrorIs(t, store.MarkFailed(ctx, id, "again"), domain.ErrTerminalRecord)
	assert.ErrorIs(t, store.MarkCompleted(ctx, id, domain.Extraction{Status: "Delivered"}), domain.ErrTerminalRecord)
	assert.ErrorIs(t, store.MarkProcessing(ctx, id), domain.ErrTerminalRecord)

	_, err = store.AttachScreenshot(ctx, id, []byte("late"), time.Now())
	assert.ErrorIs(t, err, domain.ErrTerminalRecord)

	// The terminal write was rejected, not merged.
	record, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "blocked by carrier", record.ErrorMessage)
}

// TestSQLiteStore_MarkProcessing_RequiresPending verifies the forward-only transition.
func TestSQLiteStore_MarkProcessing_RequiresPending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreatePending(ctx, "42", "1Z1", "ups", "https://example.test")
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessing(ctx, id))

	// processing -> processing is not a valid transition.
	assert.Error(t, store.MarkProcessing(ctx, id))
}

// TestSQLiteStore_NotFound verifies missing record errors.
func TestSQLiteStore_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	assert.ErrorIs(t, store.MarkProcessing(ctx, 999), domain.ErrRecordNotFound)
	assert.ErrorIs(t, store.MarkFailed(ctx, 999, "x"), domain.ErrRecordNotFound)
}

// TestSQLiteStore_LatestByShipment verifies the newest record wins.
func TestSQLiteStore_LatestByShipment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.CreatePending(ctx, "42", "1Z1", "ups", "https://example.test")
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessing(ctx, first))
	require.NoError(t, store.MarkFailed(ctx, first, "navigation failed"))

	second, err := store.CreatePending(ctx, "42", "1Z1", "ups", "https://example.test")
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessing(ctx, second))
	require.NoError(t, store.MarkCompleted(ctx, second, domain.Extraction{Status: "Delivered"}))

	latest, err := store.LatestByShipment(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, second, latest.ID)
	assert.Equal(t, domain.StatusCompleted, latest.Status)

	_, err = store.LatestByShipment(ctx, "no-such-shipment")
	assert.ErrorIs(t, err, domain.ErrNoRecords)
}

// TestSQLiteStore_ListByShipment verifies retries accumulate as separate records.
func TestSQLiteStore_ListByShipment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := store.CreatePending(ctx, "42", "1Z1", "ups", "https://example.test")
		require.NoError(t, err)
		require.NoError(t, store.MarkProcessing(ctx, id))
		require.NoError(t, store.MarkFailed(ctx, id, "timeout"))
	}

	records, err := store.ListByShipment(ctx, "42")
	require.NoError(t, err)
	require.Len(t, records, 3)
	// Most recent first.
	assert.Greater(t, records[0].ID, records[1].ID)
	assert.Greater(t, records[1].ID, records[2].ID)
}

// TestSQLiteStore_ListByTrackingKey verifies the dedup/lease lookup index path.
func TestSQLiteStore_ListByTrackingKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreatePending(ctx, "42", "1Z1", "ups", "https://example.test")
	require.NoError(t, err)
	_, err = store.CreatePending(ctx, "43", "1Z1", "fedex", "https://example.test")
	require.NoError(t, err)

	records, err := store.ListByTrackingKey(ctx, "1Z1", "ups")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "42", records[0].ShipmentID)
}

// TestSQLiteStore_Reopen verifies the schema version guard accepts an existing database.
func TestSQLiteStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "evidence.db")
	blobDir := filepath.Join(dir, "screenshots")

	store, err := Open(dbPath, blobDir)
	require.NoError(t, err)

	id, err := store.CreatePending(context.Background(), "42", "1Z1", "ups", "https://example.test")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(dbPath, blobDir)
	require.NoError(t, err)
	defer reopened.Close()

	record, err := reopened.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, record.Status)
}
