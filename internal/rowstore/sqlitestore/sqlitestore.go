// Package sqlitestore implements rowstore.Store in a local sqlite file, it is
// used for offline runs and as the backing store of integration tests.
package sqlitestore

import (
	"context"
	"damadam-scraper/internal/rowstore"
	"damadam-scraper/pkg/migrations"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var Schema string

type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the database at path, ":memory:" is accepted.
func Open(path string) (*Store, error) {
	db, err := migrations.OpenAndMigrateDB(Schema, path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) tableExists(ctx context.Context, tx *sql.Tx, table string) (bool, error) {
	var name string
	err := tx.QueryRowContext(ctx, "select name from row_tables where name = ?", table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = fn(tx)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) requireTable(ctx context.Context, tx *sql.Tx, table string) error {
	ok, err := s.tableExists(ctx, tx, table)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", rowstore.ErrTableNotFound, table)
	}
	return nil
}

func readRows(ctx context.Context, tx *sql.Tx, table string) (map[int][]string, int, error) {
	rows, err := tx.QueryContext(
		ctx,
		`select row_index, column_index, value from cells
		where table_name = ? order by row_index, column_index`,
		table,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := map[int][]string{}
	last := 0
	for rows.Next() {
		var rowIndex, column int
		var value string
		err = rows.Scan(&rowIndex, &column, &value)
		if err != nil {
			return nil, 0, err
		}
		values := out[rowIndex]
		for len(values) <= column {
			values = append(values, "")
		}
		values[column] = value
		out[rowIndex] = values
		if rowIndex > last {
			last = rowIndex
		}
	}
	return out, last, rows.Err()
}

func (s *Store) ReadAll(ctx context.Context, table string) ([]rowstore.Row, error) {
	var result []rowstore.Row
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := s.requireTable(ctx, tx, table)
		if err != nil {
			return err
		}
		cells, last, err := readRows(ctx, tx, table)
		if err != nil {
			return err
		}
		for i := 1; i <= last; i++ {
			values := cells[i]
			if values == nil {
				values = []string{}
			}
			result = append(result, rowstore.Row{Index: i, Values: values})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: read %s: %w", table, err)
	}
	return result, nil
}

func lastRow(ctx context.Context, tx *sql.Tx, table string) (int, error) {
	var last sql.NullInt64
	err := tx.QueryRowContext(
		ctx,
		"select max(row_index) from cells where table_name = ?",
		table,
	).Scan(&last)
	if err != nil {
		return 0, err
	}
	return int(last.Int64), nil
}

func setCell(ctx context.Context, tx *sql.Tx, table string, rowIndex, column int, value string) error {
	_, err := tx.ExecContext(
		ctx,
		`insert into cells(table_name, row_index, column_index, value) values (?, ?, ?, ?)
		on conflict(table_name, row_index, column_index) do update set value = excluded.value`,
		table, rowIndex, column, value,
	)
	return err
}

func (s *Store) AppendRow(ctx context.Context, table string, values []string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := s.requireTable(ctx, tx, table)
		if err != nil {
			return err
		}
		last, err := lastRow(ctx, tx, table)
		if err != nil {
			return err
		}
		// the header row is reserved even if it was never written
		next := max(last+1, 2)
		if len(values) == 0 {
			values = []string{""}
		}
		for column, value := range values {
			err = setCell(ctx, tx, table, next, column, value)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sqlitestore: append to %s: %w", table, err)
	}
	return nil
}

func (s *Store) UpdateCell(ctx context.Context, table string, rowIndex, column int, value string) error {
	if rowIndex < 2 || column < 0 {
		return fmt.Errorf("sqlitestore: invalid cell (%d, %d) of %s", rowIndex, column, table)
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := s.requireTable(ctx, tx, table)
		if err != nil {
			return err
		}
		return setCell(ctx, tx, table, rowIndex, column, value)
	})
	if err != nil {
		return fmt.Errorf("sqlitestore: update %s: %w", table, err)
	}
	return nil
}

func (s *Store) EnsureTable(ctx context.Context, table string, headers []string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "insert into row_tables(name) values (?) on conflict do nothing", table)
		if err != nil {
			return err
		}

		var count int
		err = tx.QueryRowContext(
			ctx,
			"select count(*) from cells where table_name = ? and row_index = 1",
			table,
		).Scan(&count)
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		for column, header := range headers {
			err = setCell(ctx, tx, table, 1, column, header)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sqlitestore: ensure %s: %w", table, err)
	}
	return nil
}
