package repos

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes worth naming at the repo boundary.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// classifyDBError maps driver-level Postgres errors onto repo sentinels so
// services don't have to inspect SQLSTATE codes. Non-postgres errors pass
// through unchanged.
func classifyDBError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			if pgErr.ConstraintName == "fk_chat_message_session_id" {
				return ErrSessionNotFound
			}
			return fmt.Errorf("foreign key violation (%s): %w", pgErr.ConstraintName, err)
		case pgUniqueViolation:
			return fmt.Errorf("unique violation (%s): %w", pgErr.ConstraintName, err)
		}
	}
	return err
}
