package repository

import (
	"database/sql"
	"fmt"
)

// expectAffected maps a zero-row write to sql.ErrNoRows so services can
// distinguish "nothing matched" from driver failures.
func expectAffected(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
