package adapters

import "database/sql"

// sqlDocumentRows adapts standard library sql.Rows to the document store's DBRows seam.
// It is shared by the sql.DB and sqlx adapters, which produce the same row type.
type sqlDocumentRows struct {
	rows *sql.Rows
}

// Next advances to the next row.
func (s *sqlDocumentRows) Next() bool {
	return s.rows.Next()
}

// Scan copies row values into provided destinations.
func (s *sqlDocumentRows) Scan(dest ...any) error {
	return s.rows.Scan(dest...)
}

// Close closes the rows iterator.
func (s *sqlDocumentRows) Close() error {
	return s.rows.Close()
}

// sqlWriteResult adapts standard library sql.Result to the document store's DBResult seam.
type sqlWriteResult struct {
	result sql.Result
}

// RowsAffected returns the number of rows affected by the command.
func (s *sqlWriteResult) RowsAffected() (int64, error) {
	return s.result.RowsAffected()
}
