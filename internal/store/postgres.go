package store

import (
	"context"
	"database/sql"
	"errors"

	apperrors "agency-assistant/internal/common/errors"
)

const (
	insertArtifact = `INSERT INTO artifacts (ref, kind, payload) VALUES ($1, $2, $3)`
	selectArtifact = `SELECT kind, payload FROM artifacts WHERE ref = $1`
)

// Postgres stores artifacts in the artifacts table created by
// database.Migrate.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Put(ctx context.Context, kind Kind, value interface{}) (string, error) {
	data, err := encode(value)
	if err != nil {
		return "", err
	}
	ref := NewRef(kind)
	if _, err := p.db.ExecContext(ctx, insertArtifact, ref, string(kind), data); err != nil {
		return "", storageError("insert", err)
	}
	return ref, nil
}

func (p *Postgres) Get(ctx context.Context, kind Kind, ref string, dst interface{}) error {
	var stored string
	var payload []byte
	err := p.db.QueryRowContext(ctx, selectArtifact, ref).Scan(&stored, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewReferenceNotFoundError(string(kind), ref)
	}
	if err != nil {
		return storageError("select", err)
	}
	if Kind(stored) != kind {
		return apperrors.NewReferenceNotFoundError(string(kind), ref)
	}
	return decode(payload, dst)
}

func storageError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return apperrors.NewStorageError(op, err)
}
