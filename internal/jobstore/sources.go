package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jonesrussell/healtharchive/internal/models"
)

// ErrSourceNotFound is returned by GetSource when no row matches code.
var ErrSourceNotFound = errors.New("source not found")

// GetSource fetches a single source by its code.
func (s *Store) GetSource(ctx context.Context, code string) (*models.Source, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT code, label, base_url, default_seeds, default_scope_rules, pick_stagger, created_at, updated_at
		 FROM sources WHERE code = $1`, code,
	)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, toStoreErr(fmt.Errorf("get source %q: %w", code, err))
	}
	return src, nil
}

// ListSources returns every seeded source, code ascending.
func (s *Store) ListSources(ctx context.Context) ([]models.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, label, base_url, default_seeds, default_scope_rules, pick_stagger, created_at, updated_at
		 FROM sources ORDER BY code`,
	)
	if err != nil {
		return nil, toStoreErr(fmt.Errorf("list sources: %w", err))
	}
	defer rows.Close()

	var out []models.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, *src)
	}
	if err := rows.Err(); err != nil {
		return nil, toStoreErr(fmt.Errorf("iterate sources: %w", err))
	}
	return out, nil
}

func scanSource(row rowScanner) (*models.Source, error) {
	var src models.Source
	if err := row.Scan(
		&src.Code, &src.Label, &src.BaseURL,
		&src.DefaultSeeds, &src.DefaultScopeRules, &src.PickStagger,
		&src.CreatedAt, &src.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &src, nil
}

// UpsertSource inserts or updates a source keyed on its code, reporting
// whether the row was newly created.
func (s *Store) UpsertSource(ctx context.Context, src models.Source) (created bool, err error) {
	const query = `
		INSERT INTO sources (code, label, base_url, default_seeds, default_scope_rules, pick_stagger, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (code) DO UPDATE SET
			label = EXCLUDED.label,
			base_url = EXCLUDED.base_url,
			default_seeds = EXCLUDED.default_seeds,
			default_scope_rules = EXCLUDED.default_scope_rules,
			pick_stagger = EXCLUDED.pick_stagger,
			updated_at = now()
		RETURNING (xmax = 0) AS is_insert
	`
	var isInsert bool
	err = s.db.QueryRowContext(ctx, query,
		src.Code, src.Label, src.BaseURL, src.DefaultSeeds, src.DefaultScopeRules, src.PickStagger,
	).Scan(&isInsert)
	if err != nil {
		return false, toStoreErr(fmt.Errorf("upsert source %q: %w", src.Code, err))
	}
	return isInsert, nil
}

// UpsertSourcesTx upserts every source in sources within a single
// transaction, so a batch import either lands completely or not at
// all against the sources table — the per-row ImportError collection
// that tolerates a malformed spreadsheet row happens one layer up, in
// the importer package, before any row reaches this call.
func (s *Store) UpsertSourcesTx(ctx context.Context, sources []models.Source) (created, updated int, err error) {
	if len(sources) == 0 {
		return 0, 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, toStoreErr(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && s.log != nil {
				s.log.Error("failed to rollback source import transaction")
			}
		}
	}()

	const query = `
		INSERT INTO sources (code, label, base_url, default_seeds, default_scope_rules, pick_stagger, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (code) DO UPDATE SET
			label = EXCLUDED.label,
			base_url = EXCLUDED.base_url,
			default_seeds = EXCLUDED.default_seeds,
			default_scope_rules = EXCLUDED.default_scope_rules,
			pick_stagger = EXCLUDED.pick_stagger,
			updated_at = now()
		RETURNING (xmax = 0) AS is_insert
	`

	for _, src := range sources {
		var isInsert bool
		scanErr := tx.QueryRowContext(ctx, query,
			src.Code, src.Label, src.BaseURL, src.DefaultSeeds, src.DefaultScopeRules, src.PickStagger,
		).Scan(&isInsert)
		if scanErr != nil {
			err = fmt.Errorf("upsert source %q: %w", src.Code, scanErr)
			return 0, 0, err
		}
		if isInsert {
			created++
		} else {
			updated++
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		err = fmt.Errorf("commit source import: %w", commitErr)
		return 0, 0, err
	}

	return created, updated, nil
}
