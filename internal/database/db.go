package database

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/johkker/delice/internal/models"
)

// uniqueConstraints maps unique indexes to the identity conflict they signal.
var uniqueConstraints = map[string]error{
	"users_email_key":    models.ErrEmailInUse,
	"users_phone_key":    models.ErrPhoneInUse,
	"users_document_key": models.ErrDocumentInUse,
}

func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if mapped, ok := uniqueConstraints[pgErr.ConstraintName]; ok {
				return mapped
			}
			return models.ErrConflict
		case "23503", "23502", "23514": // foreign key, not null, check
			return models.ErrBadRequest
		}
	}

	return err
}
