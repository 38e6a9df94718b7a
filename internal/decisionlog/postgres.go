package decisionlog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	id "chainscreen/pkg/domain"
	dErrors "chainscreen/pkg/domain-errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS decision_log (
	id          UUID PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	verdict     TEXT NOT NULL,
	subject     TEXT NOT NULL,
	snapshot_id UUID NOT NULL,
	payload     JSONB NOT NULL,
	logged_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS decision_log_logged_at_idx ON decision_log (logged_at, id);
`

// PostgresStore persists decision records in PostgreSQL. Rows are insert-only;
// there is no update or delete path.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed decision log.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the decision log schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "migrating decision log schema")
	}
	return nil
}

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decision_log (id, fingerprint, verdict, subject, snapshot_id, payload, logged_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID.String(), rec.Fingerprint, rec.Verdict, rec.Subject,
		rec.SnapshotID.String(), []byte(rec.Payload), rec.LoggedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return dErrors.Newf(dErrors.CodeValidation, "decision %s already logged", rec.ID)
		}
		return dErrors.Wrap(err, dErrors.CodePersistence, "appending decision record")
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, decisionID id.DecisionID) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, fingerprint, verdict, subject, snapshot_id, payload, logged_at
		FROM decision_log
		WHERE id = $1`,
		decisionID.String(),
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, dErrors.Newf(dErrors.CodeNotFound, "decision %s not found", decisionID)
	}
	if err != nil {
		return Record{}, dErrors.Wrap(err, dErrors.CodePersistence, "reading decision record")
	}
	return rec, nil
}

// ListSince implements Store.
func (s *PostgresStore) ListSince(ctx context.Context, since time.Time, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fingerprint, verdict, subject, snapshot_id, payload, logged_at
		FROM decision_log
		WHERE logged_at > $1
		ORDER BY logged_at, id
		LIMIT $2`,
		since, limit,
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "listing decision records")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodePersistence, "scanning decision record")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "iterating decision records")
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec         Record
		rawID       string
		rawSnapshot string
		payload     []byte
	)
	if err := row.Scan(&rawID, &rec.Fingerprint, &rec.Verdict, &rec.Subject, &rawSnapshot, &payload, &rec.LoggedAt); err != nil {
		return Record{}, err
	}

	decisionID, err := id.ParseDecisionID(rawID)
	if err != nil {
		return Record{}, err
	}
	snapshotID, err := id.ParseSnapshotID(rawSnapshot)
	if err != nil {
		return Record{}, err
	}
	rec.ID = decisionID
	rec.SnapshotID = snapshotID
	rec.Payload = payload
	return rec, nil
}
