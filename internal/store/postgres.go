package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amishk599/jobintake/internal/model"
)

const postgresSchema = `
DO $$ BEGIN
    CREATE TYPE contract_type AS ENUM ('CDI', 'CDD', 'Freelance', 'Internship', 'Apprenticeship', 'Interim');
EXCEPTION WHEN duplicate_object THEN NULL;
END $$;

CREATE TABLE IF NOT EXISTS sources (
    position     INTEGER PRIMARY KEY,
    name         TEXT    NOT NULL,
    official_url TEXT    NOT NULL DEFAULT '',
    creation     BOOLEAN NOT NULL DEFAULT false,
    enrichment   BOOLEAN NOT NULL DEFAULT false,
    analysis     BOOLEAN NOT NULL DEFAULT false,
    senders      TEXT[]  NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS offers (
    key              TEXT PRIMARY KEY,
    external_id      TEXT NOT NULL DEFAULT '',
    url              TEXT NOT NULL DEFAULT '',
    posted_date      DATE,
    added_date       DATE,
    title            TEXT NOT NULL DEFAULT '',
    company          TEXT NOT NULL DEFAULT '',
    city             TEXT NOT NULL DEFAULT '',
    region           TEXT NOT NULL DEFAULT '',
    salary           TEXT NOT NULL DEFAULT '',
    contract_type    contract_type,
    description_text TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL,
    source_ref       TEXT NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_offers_status ON offers(status);
`

// invalidTextRepresentation is raised when a value is not a member of an enum.
const invalidTextRepresentation = "22P02"

// PostgresStore is the remote backend for sources and offers. Writes are
// retried on connection-level failures.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var (
	_ SourceRepository = (*PostgresStore)(nil)
	_ OfferStore       = (*PostgresStore)(nil)
)

// NewPostgresStore connects to databaseURL, verifies the connection and
// applies the schema.
func NewPostgresStore(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &model.TransportError{Op: "postgres ping", Err: err}
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying postgres schema: %w", err)
	}

	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// withRetry runs fn with a bounded retry. Server-side errors are not retried;
// exhausted connection failures surface as a model.TransportError.
func (s *PostgresStore) withRetry(ctx context.Context, op string, fn func() error) error {
	err := retry.Do(fn,
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("postgres operation failed, retrying", "op", op, "attempt", n+1, "error", err)
		}),
		retry.RetryIf(isConnectionError),
	)
	if err != nil && isConnectionError(err) {
		return &model.TransportError{Op: "postgres " + op, Err: err}
	}
	return err
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}
	var ce *model.ConflictError
	if errors.As(err, &ce) {
		return false
	}
	return !errors.Is(err, pgx.ErrNoRows) && !errors.Is(err, model.ErrNotFound) &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (s *PostgresStore) conflict(err error, value string) error {
	var pgErr *pgconn.PgError
	if value != "" && errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation &&
		strings.Contains(pgErr.Message, "contract_type") {
		return &model.ConflictError{Field: model.FieldContractType, Value: value, Err: err}
	}
	return err
}

// LoadSources returns every registry row in position order.
func (s *PostgresStore) LoadSources(ctx context.Context) ([]model.Source, error) {
	var sources []model.Source
	err := s.withRetry(ctx, "load sources", func() error {
		sources = nil
		rows, err := s.pool.Query(ctx,
			`SELECT name, official_url, creation, enrichment, analysis, senders
			 FROM sources ORDER BY position`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				src  model.Source
				name string
			)
			if err := rows.Scan(&name, &src.OfficialURL, &src.Capabilities.Creation,
				&src.Capabilities.Enrichment, &src.Capabilities.Analysis, &src.SenderIdentities); err != nil {
				return retry.Unrecoverable(fmt.Errorf("scan source: %w", err))
			}
			src.Name = model.SourceName(name)
			sources = append(sources, src)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("loading sources: %w", err)
	}
	return sources, nil
}

// SaveSources replaces the registry rows in one transaction.
func (s *PostgresStore) SaveSources(ctx context.Context, sources []model.Source) error {
	err := s.withRetry(ctx, "save sources", func() error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		if _, err := tx.Exec(ctx, "DELETE FROM sources"); err != nil {
			return err
		}
		for i, src := range sources {
			ids := src.SenderIdentities
			if ids == nil {
				ids = []string{}
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO sources (position, name, official_url, creation, enrichment, analysis, senders)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				i+1, string(src.Name), src.OfficialURL, src.Capabilities.Creation,
				src.Capabilities.Enrichment, src.Capabilities.Analysis, ids); err != nil {
				return err
			}
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return fmt.Errorf("saving sources: %w", err)
	}
	return nil
}

const pgOfferColumns = `key, external_id, url, posted_date, added_date, title, company, city, region,
	salary, COALESCE(contract_type::text, ''), description_text, status, source_ref, updated_at`

func scanPgOffer(row pgx.Row) (model.Offer, error) {
	var (
		o              model.Offer
		status, source string
	)
	err := row.Scan(&o.Key, &o.ExternalID, &o.URL, &o.PostedDate, &o.AddedDate, &o.Title, &o.Company,
		&o.City, &o.Region, &o.Salary, &o.ContractType, &o.DescriptionText, &status, &source, &o.UpdatedAt)
	if err != nil {
		return model.Offer{}, err
	}
	o.Status = model.Status(status)
	o.SourceRef, _ = model.ParseSourceName(source)
	return o, nil
}

// FindByKey returns the offer stored under key, or model.ErrNotFound.
func (s *PostgresStore) FindByKey(ctx context.Context, key string) (model.Offer, error) {
	var o model.Offer
	err := s.withRetry(ctx, "find offer", func() error {
		var err error
		o, err = scanPgOffer(s.pool.QueryRow(ctx, "SELECT "+pgOfferColumns+" FROM offers WHERE key = $1", key))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Offer{}, model.ErrNotFound
	}
	if err != nil {
		return model.Offer{}, fmt.Errorf("finding offer %s: %w", key, err)
	}
	return o, nil
}

// Create inserts offer. An enum rejection yields a model.ConflictError.
func (s *PostgresStore) Create(ctx context.Context, offer model.Offer) error {
	return s.withRetry(ctx, "create offer", func() error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO offers (key, external_id, url, posted_date, added_date, title, company, city,
			  region, salary, contract_type, description_text, status, source_ref, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, '')::contract_type, $12, $13, $14, now())`,
			offer.Key, offer.ExternalID, offer.URL, offer.PostedDate, offer.AddedDate, offer.Title,
			offer.Company, offer.City, offer.Region, offer.Salary, offer.ContractType,
			offer.DescriptionText, string(offer.Status), string(offer.SourceRef))
		return s.conflict(err, offer.ContractType)
	})
}

// Patch updates only the fields present in patch and, when set, the status.
func (s *PostgresStore) Patch(ctx context.Context, key string, patch model.Patch) error {
	var (
		sets []string
		args []any
	)
	for _, f := range model.MutableFields {
		v, ok := patchValue(f, patch.Fields[f])
		if !ok {
			continue
		}
		args = append(args, v)
		switch f {
		case model.FieldContractType:
			sets = append(sets, fmt.Sprintf("contract_type = $%d::contract_type", len(args)))
		case model.FieldPostedDate, model.FieldAddedDate:
			sets = append(sets, fmt.Sprintf("%s = $%d::date", f, len(args)))
		default:
			sets = append(sets, fmt.Sprintf("%s = $%d", f, len(args)))
		}
	}
	if patch.Status != "" {
		args = append(args, string(patch.Status))
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, key)
	q := fmt.Sprintf("UPDATE offers SET %s, updated_at = now() WHERE key = $%d", strings.Join(sets, ", "), len(args))

	return s.withRetry(ctx, "patch offer", func() error {
		tag, err := s.pool.Exec(ctx, q, args...)
		if err != nil {
			return s.conflict(err, patch.Fields[model.FieldContractType])
		}
		if tag.RowsAffected() == 0 {
			return model.ErrNotFound
		}
		return nil
	})
}

// ListEligible returns offers in PendingCompletion, oldest first, skipping
// the excluded sources before the limit is applied.
func (s *PostgresStore) ListEligible(ctx context.Context, limit int, exclude []model.SourceName) ([]model.Offer, error) {
	q := "SELECT " + pgOfferColumns + " FROM offers WHERE status = $1 AND NOT (source_ref = ANY($2))" +
		" ORDER BY added_date NULLS FIRST, key"
	args := []any{string(model.StatusPendingCompletion), sourceNames(exclude)}
	if limit > 0 {
		q += " LIMIT $3"
		args = append(args, limit)
	}

	var offers []model.Offer
	err := s.withRetry(ctx, "list eligible", func() error {
		offers = nil
		rows, err := s.pool.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			o, err := scanPgOffer(rows)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("scan offer: %w", err))
			}
			offers = append(offers, o)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("listing eligible offers: %w", err)
	}
	return offers, nil
}

// ExtendEnum adds value to the contract_type enum. ALTER TYPE does not take
// bind parameters, so the literal is quoted here.
func (s *PostgresStore) ExtendEnum(ctx context.Context, field model.Field, value string) error {
	if field != model.FieldContractType {
		return fmt.Errorf("field %s is not categorical", field)
	}
	lit := "'" + strings.ReplaceAll(value, "'", "''") + "'"
	return s.withRetry(ctx, "extend enum", func() error {
		_, err := s.pool.Exec(ctx, "ALTER TYPE contract_type ADD VALUE IF NOT EXISTS "+lit)
		return err
	})
}
