package adapters

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"evidence-capture/internal/features/evidence/domain"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const timeLayout = time.RFC3339Nano

// SQLiteStore persists evidence records in SQLite and screenshot blobs on the
// local filesystem. All writes are append-oriented: terminal records reject
// further writes and nothing is ever deleted.
type SQLiteStore struct {
	db      *sql.DB
	blobDir string
}

// Open initializes or connects to the evidence database and prepares the blob
// directory.
func Open(dbPath, blobDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure db directory: %w", err)
	}
	if err := os.MkdirAll(blobDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure blob directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// Session pragmas only apply to the connection that ran them, and batch
	// syncs write from many goroutines at once. A single pooled connection
	// keeps the busy timeout in effect for every writer.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, blobDir: blobDir}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d",
			ErrSchemaMismatch, version, schemaVersion)
	}

	return nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// CreatePending appends a new pending record and returns its monotonic id.
func (s *SQLiteStore) CreatePending(ctx context.Context, shipmentID, trackingNumber, carrier, carrierURL string) (int64, error) {
	now := time.Now().UTC().Format(timeLayout)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO evidence_records (
            shipment_id, tracking_number, carrier, carrier_url,
            processing_status, created_at
        ) VALUES (?, ?, ?, ?, ?, ?)`,
		shipmentID,
		trackingNumber,
		carrier,
		carrierURL,
		domain.StatusPending,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert pending record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted record id: %w", err)
	}
	return id, nil
}

// MarkProcessing transitions a pending record to processing.
func (s *SQLiteStore) MarkProcessing(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE evidence_records SET processing_status = ?
         WHERE id = ? AND processing_status = ?`,
		domain.StatusProcessing, id, domain.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark record %d processing: %w", id, err)
	}
	return s.checkTransition(ctx, id, res)
}

// MarkCompleted transitions a record to completed and sets the extracted fields.
func (s *SQLiteStore) MarkCompleted(ctx context.Context, id int64, extraction domain.Extraction) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE evidence_records SET
            processing_status = ?,
            extracted_status = ?,
            extracted_location = ?,
            extracted_eta = ?,
            extracted_details_raw = ?
         WHERE id = ? AND processing_status IN (?, ?)`,
		domain.StatusCompleted,
		extraction.Status,
		extraction.Location,
		extraction.ETA,
		extraction.RawJSON,
		id,
		domain.StatusPending, domain.StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark record %d completed: %w", id, err)
	}
	return s.checkTransition(ctx, id, res)
}

// MarkFailed transitions a record to failed with the given error message.
func (s *SQLiteStore) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE evidence_records SET processing_status = ?, error_message = ?
         WHERE id = ? AND processing_status IN (?, ?)`,
		domain.StatusFailed,
		errorMessage,
		id,
		domain.StatusPending, domain.StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark record %d failed: %w", id, err)
	}
	return s.checkTransition(ctx, id, res)
}

// checkTransition distinguishes a missing record from a rejected terminal write
// when a guarded update matched no rows.
func (s *SQLiteStore) checkTransition(ctx context.Context, id int64, res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected for record %d: %w", id, err)
	}
	if affected > 0 {
		return nil
	}

	var status string
	err = s.db.QueryRowContext(ctx,
		"SELECT processing_status FROM evidence_records WHERE id = ?", id,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("record %d: %w", id, domain.ErrRecordNotFound)
	}
	if err != nil {
		return fmt.Errorf("read record %d status: %w", id, err)
	}
	if domain.ProcessingStatus(status).IsTerminal() {
		return fmt.Errorf("record %d is %s: %w", id, status, domain.ErrTerminalRecord)
	}
	return fmt.Errorf("record %d is %s: invalid transition", id, status)
}

// AttachScreenshot writes the image blob under the blob directory and records
// the reference and capture time on the row. The blob file is named after the
// record id so evidence and image stay correlated.
func (s *SQLiteStore) AttachScreenshot(ctx context.Context, id int64, image []byte, capturedAt time.Time) (string, error) {
	ref := fmt.Sprintf("%d.png", id)

	if err := os.WriteFile(filepath.Join(s.blobDir, ref), image, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot blob for record %d: %w", id, err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE evidence_records SET screenshot_ref = ?, captured_at = ?
         WHERE id = ? AND processing_status IN (?, ?)`,
		ref,
		capturedAt.UTC().Format(timeLayout),
		id,
		domain.StatusPending, domain.StatusProcessing,
	)
	if err != nil {
		return "", fmt.Errorf("attach screenshot to record %d: %w", id, err)
	}
	if err := s.checkTransition(ctx, id, res); err != nil {
		return "", err
	}
	return ref, nil
}

const recordColumns = `id, shipment_id, tracking_number, carrier, carrier_url,
	screenshot_ref, extracted_status, extracted_location, extracted_eta,
	extracted_details_raw, processing_status, error_message, captured_at, created_at`

// Get returns a record by id.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*domain.Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM evidence_records WHERE id = ?", id)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %d: %w", id, domain.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read record %d: %w", id, err)
	}
	return record, nil
}

// LatestByShipment returns the most recent record for a shipment. The latest
// record by creation order is the shipment's current status; there is no
// mutable summary row.
func (s *SQLiteStore) LatestByShipment(ctx context.Context, shipmentID string) (*domain.Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+` FROM evidence_records
         WHERE shipment_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		shipmentID)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("shipment %s: %w", shipmentID, domain.ErrNoRecords)
	}
	if err != nil {
		return nil, fmt.Errorf("read latest record for shipment %s: %w", shipmentID, err)
	}
	return record, nil
}

// ListByShipment returns all records for a shipment, most recent first.
func (s *SQLiteStore) ListByShipment(ctx context.Context, shipmentID string) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+` FROM evidence_records
         WHERE shipment_id = ? ORDER BY created_at DESC, id DESC`,
		shipmentID)
	if err != nil {
		return nil, fmt.Errorf("list records for shipment %s: %w", shipmentID, err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ListByTrackingKey returns all records for a (trackingNumber, carrier) pair,
// most recent first.
func (s *SQLiteStore) ListByTrackingKey(ctx context.Context, trackingNumber, carrier string) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+` FROM evidence_records
         WHERE tracking_number = ? AND carrier = ? ORDER BY created_at DESC, id DESC`,
		trackingNumber, carrier)
	if err != nil {
		return nil, fmt.Errorf("list records for tracking %s/%s: %w", carrier, trackingNumber, err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ScreenshotPath returns the filesystem path of an attached screenshot blob.
func (s *SQLiteStore) ScreenshotPath(ref string) string {
	return filepath.Join(s.blobDir, ref)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var record domain.Record
	var capturedAt, createdAt string

	err := row.Scan(
		&record.ID,
		&record.ShipmentID,
		&record.TrackingNumber,
		&record.Carrier,
		&record.CarrierURL,
		&record.ScreenshotRef,
		&record.ExtractedStatus,
		&record.ExtractedLocation,
		&record.ExtractedETA,
		&record.ExtractedDetailsRaw,
		&record.Status,
		&record.ErrorMessage,
		&capturedAt,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if capturedAt != "" {
		record.CapturedAt, err = time.Parse(timeLayout, capturedAt)
		if err != nil {
			return nil, fmt.Errorf("parse captured_at %q: %w", capturedAt, err)
		}
	}
	record.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}

	return &record, nil
}

func collectRecords(rows *sql.Rows) ([]domain.Record, error) {
	var records []domain.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}
