package datarecording

import (
	"context"
	"database/sql"
	"fmt"
)

// QueryParams narrows a query.
type QueryParams struct {
	// Where holds the WHERE clause without the "WHERE" keyword, for example
	// "Run = ? AND Protocol = ?".
	Where string
	Args  []any

	// OrderBy specifies sorting, without the "ORDER BY" keywords.
	OrderBy string

	// Limit is the maximum number of rows, or 0 for no limit.
	Limit int
}

// Reader reads back what a recorder stored.
type Reader struct {
	*sql.DB
}

// NewReader opens a database file for reading.
func NewReader(filename string) (*Reader, error) {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}

	return &Reader{DB: db}, nil
}

// NewReaderWithDB creates a reader on an open database.
func NewReaderWithDB(db *sql.DB) *Reader {
	return &Reader{DB: db}
}

// ListTables returns the tables of the database.
func (r *Reader) ListTables(ctx context.Context) ([]string, error) {
	rows, err := r.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}

		tables = append(tables, name)
	}

	return tables, rows.Err()
}

// Flows returns the stored flow rows.
func (r *Reader) Flows(ctx context.Context, params QueryParams) ([]FlowEntry, error) {
	query := "SELECT * FROM " + FlowTableName

	if params.Where != "" {
		query += " WHERE " + params.Where
	}

	if params.OrderBy != "" {
		query += " ORDER BY " + params.OrderBy
	}

	if params.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", params.Limit)
	}

	rows, err := r.QueryContext(ctx, query, params.Args...)
	if err != nil {
		return nil, fmt.Errorf("querying flows: %w", err)
	}
	defer rows.Close()

	var out []FlowEntry

	for rows.Next() {
		var e FlowEntry

		err := rows.Scan(
			&e.Run, &e.FlowID, &e.Protocol,
			&e.Source, &e.SourcePort, &e.Destination, &e.DestinationPort,
			&e.TxBytes, &e.RxBytes, &e.TxPackets, &e.RxPackets,
			&e.LostPackets, &e.TimesForwarded,
			&e.FirstTxSec, &e.LastRxSec, &e.DelaySumSec, &e.JitterSumSec,
		)
		if err != nil {
			return nil, err
		}

		out = append(out, e)
	}

	return out, rows.Err()
}
