package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/itconnect/internal/domain"
)

// RoleUpgradeRepository manages role upgrade requests.
type RoleUpgradeRepository interface {
	Create(ctx context.Context, req *domain.RoleUpgradeRequest) error
	GetByID(ctx context.Context, id string) (*domain.RoleUpgradeRequest, error)
	// Approve marks the request approved and rewrites the subject's role in
	// the access-control record and the profile document.
	Approve(ctx context.Context, req *domain.RoleUpgradeRequest, approverID string) error
	Reject(ctx context.Context, req *domain.RoleUpgradeRequest, approverID string) error
}

type roleUpgradeRepository struct {
	pool *pgxpool.Pool
}

// NewRoleUpgradeRepository builds the repository.
func NewRoleUpgradeRepository(pool *pgxpool.Pool) RoleUpgradeRepository {
	return &roleUpgradeRepository{pool: pool}
}

func (r *roleUpgradeRepository) Create(ctx context.Context, req *domain.RoleUpgradeRequest) error {
	const query = `
        INSERT INTO role_upgrade_requests (subject_id, from_role, to_role, reason, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		req.SubjectID,
		req.CurrentRole,
		req.RequestedRole,
		req.Reason,
		req.Status,
	).Scan(&req.ID, &req.CreatedAt)
}

func (r *roleUpgradeRepository) GetByID(ctx context.Context, id string) (*domain.RoleUpgradeRequest, error) {
	if !validID(id) {
		return nil, pgx.ErrNoRows
	}
	const query = `
        SELECT id, subject_id, from_role, to_role, reason, status, decided_by, created_at, decided_at
        FROM role_upgrade_requests WHERE id=$1`

	var req domain.RoleUpgradeRequest
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&req.ID,
		&req.SubjectID,
		&req.CurrentRole,
		&req.RequestedRole,
		&req.Reason,
		&req.Status,
		&req.DecidedBy,
		&req.CreatedAt,
		&req.DecidedAt,
	); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *roleUpgradeRepository) Approve(ctx context.Context, req *domain.RoleUpgradeRequest, approverID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var decidedAt time.Time
	if err := tx.QueryRow(ctx, `
        UPDATE role_upgrade_requests SET status=$1, decided_by=$2, decided_at=NOW()
        WHERE id=$3 AND status=$4
        RETURNING decided_at`,
		domain.RoleUpgradeApproved, approverID, req.ID, domain.RoleUpgradePending).Scan(&decidedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		return fmt.Errorf("approve request: %w", err)
	}

	var documentPath string
	if err := tx.QueryRow(ctx, `
        UPDATE users_access_control SET role=$1, updated_at=NOW()
        WHERE subject_id=$2 RETURNING document_path`, req.RequestedRole, req.SubjectID).Scan(&documentPath); err != nil {
		return fmt.Errorf("update role: %w", err)
	}

	if _, err := tx.Exec(ctx, `
        UPDATE profiles SET data = jsonb_set(data, '{role}', to_jsonb($1::text)), updated_at=NOW()
        WHERE document_path=$2`, req.RequestedRole, documentPath); err != nil {
		return fmt.Errorf("update profile role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	req.Status = domain.RoleUpgradeApproved
	req.DecidedBy = &approverID
	req.DecidedAt = &decidedAt
	return nil
}

func (r *roleUpgradeRepository) Reject(ctx context.Context, req *domain.RoleUpgradeRequest, approverID string) error {
	const query = `
        UPDATE role_upgrade_requests SET status=$1, decided_by=$2, decided_at=NOW()
        WHERE id=$3 AND status=$4
        RETURNING decided_at`
	if err := r.pool.QueryRow(ctx, query,
		domain.RoleUpgradeRejected, approverID, req.ID, domain.RoleUpgradePending,
	).Scan(&req.DecidedAt); err != nil {
		return err
	}
	req.Status = domain.RoleUpgradeRejected
	req.DecidedBy = &approverID
	return nil
}
