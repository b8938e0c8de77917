package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/trailsync/internal/domain"
)

const recordColumns = `row_num, trail_id, name, lat, lon, difficulty, length, timing, distance, website_link, max_participants, notes`

// PostgresStore is a registry backed by one Postgres table. The table keeps
// sheet addressing: a row_num column assigned on append, and lat/lon columns
// typed TEXT so coordinates round-trip byte for byte.
type PostgresStore struct {
	pool  *pgxpool.Pool
	name  string
	table string
}

// NewPostgresStore constructs a store over the named table. The registry
// name is what appears in logs; the table name is the storage handle.
func NewPostgresStore(pool *pgxpool.Pool, name, table string) *PostgresStore {
	return &PostgresStore{pool: pool, name: name, table: table}
}

// Name implements Store.
func (s *PostgresStore) Name() string { return s.name }

func (s *PostgresStore) ident() string {
	return pgx.Identifier{s.table}.Sanitize()
}

// classify maps storage failures onto the registry error taxonomy: a missing
// table or unreachable database is ErrUnavailable, which callers skip.
func (s *PostgresStore) classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
		return fmt.Errorf("%w: %s (relation %s): %v", ErrUnavailable, s.name, s.table, err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, s.name, err)
	}
	return err
}

// ReadRow implements Store.
func (s *PostgresStore) ReadRow(ctx context.Context, rowNum int64) (domain.TrailRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE row_num = $1`, recordColumns, s.ident())

	row, err := s.scanOne(ctx, query, rowNum)
	if err != nil {
		return domain.TrailRecord{}, err
	}
	return row.Record, nil
}

// FindRow implements Store.
func (s *PostgresStore) FindRow(ctx context.Context, trailID string) (Row, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE trail_id = $1`, recordColumns, s.ident())
	return s.scanOne(ctx, query, trailID)
}

func (s *PostgresStore) scanOne(ctx context.Context, query string, arg interface{}) (Row, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return Row{}, s.classify(err)
	}
	defer conn.Release()

	var row Row
	err = conn.QueryRow(ctx, query, arg).Scan(
		&row.Num,
		&row.Record.ID,
		&row.Record.Name,
		&row.Record.Lat,
		&row.Record.Lon,
		&row.Record.Difficulty,
		&row.Record.Length,
		&row.Record.Timing,
		&row.Record.Distance,
		&row.Record.WebsiteLink,
		&row.Record.MaxParticipants,
		&row.Record.Notes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Row{}, fmt.Errorf("%w: %s", ErrRowNotFound, s.name)
		}
		return Row{}, s.classify(err)
	}
	return row, nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, trailID string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE trail_id = $1`, s.ident())

	tag, err := s.pool.Exec(ctx, query, trailID)
	if err != nil {
		return false, s.classify(err)
	}
	return tag.RowsAffected() > 0, nil
}

// Upsert implements Store. The update and insert paths both write lat/lon
// through an explicit ::text cast so the stored representation is stable
// across repeated passes, not just the value.
func (s *PostgresStore) Upsert(ctx context.Context, rec domain.TrailRecord) (created bool, err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, s.classify(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	update := fmt.Sprintf(`UPDATE %s SET
            name = $2, lat = $3::text, lon = $4::text, difficulty = $5,
            length = $6, timing = $7, distance = $8, website_link = $9,
            max_participants = $10, notes = $11
        WHERE trail_id = $1`, s.ident())

	tag, err := tx.Exec(ctx, update,
		rec.ID, rec.Name, rec.Lat, rec.Lon, rec.Difficulty,
		rec.Length, rec.Timing, rec.Distance, rec.WebsiteLink,
		rec.MaxParticipants, rec.Notes,
	)
	if err != nil {
		return false, s.classify(err)
	}

	if tag.RowsAffected() == 0 {
		insert := fmt.Sprintf(`INSERT INTO %s (%s)
            SELECT COALESCE(MAX(row_num), %d - 1) + 1,
                   $1, $2, $3::text, $4::text, $5, $6, $7, $8, $9, $10, $11
              FROM %s`, s.ident(), recordColumns, domain.FirstDataRow, s.ident())

		if _, err = tx.Exec(ctx, insert,
			rec.ID, rec.Name, rec.Lat, rec.Lon, rec.Difficulty,
			rec.Length, rec.Timing, rec.Distance, rec.WebsiteLink,
			rec.MaxParticipants, rec.Notes,
		); err != nil {
			return false, s.classify(err)
		}
		created = true
	}

	if err = tx.Commit(ctx); err != nil {
		return false, s.classify(err)
	}
	return created, nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context) ([]Row, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY row_num`, recordColumns, s.ident())

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, s.classify(err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(
			&row.Num,
			&row.Record.ID,
			&row.Record.Name,
			&row.Record.Lat,
			&row.Record.Lon,
			&row.Record.Difficulty,
			&row.Record.Length,
			&row.Record.Timing,
			&row.Record.Distance,
			&row.Record.WebsiteLink,
			&row.Record.MaxParticipants,
			&row.Record.Notes,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify(err)
	}
	return out, nil
}

// RowCount implements Store.
func (s *PostgresStore) RowCount(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.ident())

	var count int64
	if err := s.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, s.classify(err)
	}
	return count, nil
}
