package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/itconnect/internal/domain"
)

// CredentialRepository defines persistence access for login secrets.
type CredentialRepository interface {
	GetBySubjectID(ctx context.Context, subjectID string) (*domain.Credential, error)
	GetByEmail(ctx context.Context, email string) (*domain.Credential, error)
	UpdatePasswordHash(ctx context.Context, subjectID, hash string) error
}

type credentialRepository struct {
	pool *pgxpool.Pool
}

// NewCredentialRepository returns a Postgres-backed implementation.
func NewCredentialRepository(pool *pgxpool.Pool) CredentialRepository {
	return &credentialRepository{pool: pool}
}

func (r *credentialRepository) GetBySubjectID(ctx context.Context, subjectID string) (*domain.Credential, error) {
	const query = `
        SELECT subject_id, email, password_hash, created_at, updated_at
        FROM credentials WHERE subject_id=$1`
	return r.fetchSingle(ctx, query, subjectID)
}

func (r *credentialRepository) GetByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	const query = `
        SELECT subject_id, email, password_hash, created_at, updated_at
        FROM credentials WHERE LOWER(email)=LOWER($1)`
	return r.fetchSingle(ctx, query, email)
}

func (r *credentialRepository) UpdatePasswordHash(ctx context.Context, subjectID, hash string) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE credentials SET password_hash=$1, updated_at=NOW() WHERE subject_id=$2`, hash, subjectID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *credentialRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Credential, error) {
	var cred domain.Credential
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&cred.SubjectID,
		&cred.Email,
		&cred.PasswordHash,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &cred, nil
}
