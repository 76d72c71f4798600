package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amishk599/jobintake/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Schema versions:
// 1 - sources, offers, contract_types, archived_items
const currentSchemaVersion = 1

// timeLayout is fixed-width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is the local backend for sources, offers and the archive ledger.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ SourceRepository = (*SQLiteStore)(nil)
	_ OfferStore       = (*SQLiteStore)(nil)
	_ ArchiveLedger    = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (or creates) the database at dbPath and applies the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &model.TransportError{Op: "sqlite ping", Err: err}
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting user_version: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LoadSources returns every persisted registry row in position order.
func (s *SQLiteStore) LoadSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, name, official_url, creation, enrichment, analysis
		 FROM sources ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	var (
		sources   []model.Source
		positions []int64
	)
	for rows.Next() {
		var (
			pos  int64
			name string
			src  model.Source
		)
		if err := rows.Scan(&pos, &name, &src.OfficialURL,
			&src.Capabilities.Creation, &src.Capabilities.Enrichment, &src.Capabilities.Analysis); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		src.Name = model.SourceName(name)
		sources = append(sources, src)
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sources: %w", err)
	}

	for i, pos := range positions {
		ids, err := s.loadSenders(ctx, pos)
		if err != nil {
			return nil, err
		}
		sources[i].SenderIdentities = ids
	}
	return sources, nil
}

func (s *SQLiteStore) loadSenders(ctx context.Context, pos int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT identity FROM source_senders WHERE source_position = ? ORDER BY ordinal", pos)
	if err != nil {
		return nil, fmt.Errorf("querying senders for source %d: %w", pos, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning sender: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveSources replaces the persisted registry with sources in one transaction.
func (s *SQLiteStore) SaveSources(ctx context.Context, sources []model.Source) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM source_senders"); err != nil {
		return fmt.Errorf("clearing senders: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sources"); err != nil {
		return fmt.Errorf("clearing sources: %w", err)
	}

	for i, src := range sources {
		pos := i + 1
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sources (position, name, official_url, creation, enrichment, analysis)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			pos, string(src.Name), src.OfficialURL,
			src.Capabilities.Creation, src.Capabilities.Enrichment, src.Capabilities.Analysis); err != nil {
			return fmt.Errorf("inserting source %s: %w", src.Name, err)
		}
		for j, id := range src.SenderIdentities {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO source_senders (source_position, ordinal, identity) VALUES (?, ?, ?)",
				pos, j, id); err != nil {
				return fmt.Errorf("inserting sender %s: %w", id, err)
			}
		}
	}
	return tx.Commit()
}

const offerColumns = `key, external_id, url, posted_date, added_date, title, company, city, region,
	salary, contract_type, description_text, status, source_ref, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffer(r rowScanner) (model.Offer, error) {
	var (
		o                    model.Offer
		posted, added, ctype sql.NullString
		status, source       string
		updated              string
	)
	err := r.Scan(&o.Key, &o.ExternalID, &o.URL, &posted, &added, &o.Title, &o.Company, &o.City,
		&o.Region, &o.Salary, &ctype, &o.DescriptionText, &status, &source, &updated)
	if err != nil {
		return model.Offer{}, err
	}
	o.UpdatedAt, _ = time.Parse(timeLayout, updated)
	o.PostedDate = parseDate(posted.String)
	o.AddedDate = parseDate(added.String)
	o.ContractType = ctype.String
	o.Status = model.Status(status)
	o.SourceRef, _ = model.ParseSourceName(source)
	return o, nil
}

// FindByKey returns the offer stored under key, or model.ErrNotFound.
func (s *SQLiteStore) FindByKey(ctx context.Context, key string) (model.Offer, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+offerColumns+" FROM offers WHERE key = ?", key)
	o, err := scanOffer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Offer{}, model.ErrNotFound
	}
	if err != nil {
		return model.Offer{}, fmt.Errorf("finding offer %s: %w", key, err)
	}
	return o, nil
}

// Create inserts offer. An unknown contract type yields a model.ConflictError.
func (s *SQLiteStore) Create(ctx context.Context, offer model.Offer) error {
	if err := s.checkContractType(ctx, offer.ContractType); err != nil {
		return err
	}
	if offer.UpdatedAt.IsZero() {
		offer.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO offers ("+offerColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		offer.Key, offer.ExternalID, offer.URL,
		columnValue(offer, model.FieldPostedDate), columnValue(offer, model.FieldAddedDate),
		offer.Title, offer.Company, offer.City, offer.Region, offer.Salary,
		columnValue(offer, model.FieldContractType), offer.DescriptionText,
		string(offer.Status), string(offer.SourceRef), offer.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return s.classify(err, offer.ContractType, fmt.Sprintf("creating offer %s", offer.Key))
	}
	return nil
}

// Patch updates only the fields present in patch and, when set, the status.
func (s *SQLiteStore) Patch(ctx context.Context, key string, patch model.Patch) error {
	ctype := patch.Fields[model.FieldContractType]
	if err := s.checkContractType(ctx, ctype); err != nil {
		return err
	}

	var (
		sets []string
		args []any
	)
	for _, f := range model.MutableFields {
		v, ok := patchValue(f, patch.Fields[f])
		if !ok {
			continue
		}
		sets = append(sets, string(f)+" = ?")
		args = append(args, v)
	}
	if patch.Status != "" {
		sets = append(sets, "status = ?")
		args = append(args, string(patch.Status))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().Format(timeLayout), key)

	res, err := s.db.ExecContext(ctx, "UPDATE offers SET "+strings.Join(sets, ", ")+" WHERE key = ?", args...)
	if err != nil {
		return s.classify(err, ctype, fmt.Sprintf("patching offer %s", key))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("patching offer %s: %w", key, err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ListEligible returns offers in PendingCompletion, oldest first, skipping
// the excluded sources before the limit is applied.
func (s *SQLiteStore) ListEligible(ctx context.Context, limit int, exclude []model.SourceName) ([]model.Offer, error) {
	q := "SELECT " + offerColumns + " FROM offers WHERE status = ?"
	args := []any{string(model.StatusPendingCompletion)}
	if len(exclude) > 0 {
		q += " AND source_ref NOT IN (?" + strings.Repeat(", ?", len(exclude)-1) + ")"
		for _, name := range exclude {
			args = append(args, string(name))
		}
	}
	q += " ORDER BY added_date, key"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing eligible offers: %w", err)
	}
	defer rows.Close()

	var offers []model.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning offer: %w", err)
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

// ExtendEnum adds value to the lookup table backing field.
func (s *SQLiteStore) ExtendEnum(ctx context.Context, field model.Field, value string) error {
	if field != model.FieldContractType {
		return fmt.Errorf("field %s is not categorical", field)
	}
	if _, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO contract_types (name) VALUES (?)", value); err != nil {
		return fmt.Errorf("extending contract types with %q: %w", value, err)
	}
	return nil
}

func (s *SQLiteStore) checkContractType(ctx context.Context, value string) error {
	if value == "" {
		return nil
	}
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM contract_types WHERE name = ?", value).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.ConflictError{Field: model.FieldContractType, Value: value, Err: errors.New("unknown contract type")}
	}
	if err != nil {
		return fmt.Errorf("checking contract type %q: %w", value, err)
	}
	return nil
}

// classify maps a foreign key violation on contract_type to a ConflictError.
func (s *SQLiteStore) classify(err error, ctype, op string) error {
	if ctype != "" && strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
		return &model.ConflictError{Field: model.FieldContractType, Value: ctype, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsArchived reports whether itemID has been recorded as archived.
func (s *SQLiteStore) IsArchived(ctx context.Context, itemID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM archived_items WHERE item_id = ?", itemID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking archived status for %s: %w", itemID, err)
	}
	return true, nil
}

// MarkArchived records item ids as archived. Repeated ids are ignored.
func (s *SQLiteStore) MarkArchived(ctx context.Context, itemIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()
	now := time.Now().UTC().Format(timeLayout)
	for _, id := range itemIDs {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO archived_items (item_id, archived_at) VALUES (?, ?)", id, now); err != nil {
			return fmt.Errorf("marking item %s as archived: %w", id, err)
		}
	}
	return tx.Commit()
}

// Cleanup deletes ledger entries older than the given duration.
func (s *SQLiteStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan).UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx, "DELETE FROM archived_items WHERE archived_at < ?", cutoff)
	if err != nil {
		return fmt.Errorf("cleaning up archived items older than %v: %w", olderThan, err)
	}
	return nil
}
