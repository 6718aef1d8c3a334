package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/itconnect/internal/domain"
)

// AccessControlRepository reads users_access_control records.
type AccessControlRepository interface {
	GetBySubjectID(ctx context.Context, subjectID string) (*domain.AccessControl, error)
	ListByCompany(ctx context.Context, company string, limit, offset int) ([]domain.AccessControl, error)
}

type accessControlRepository struct {
	pool *pgxpool.Pool
}

// NewAccessControlRepository returns a Postgres-backed implementation.
func NewAccessControlRepository(pool *pgxpool.Pool) AccessControlRepository {
	return &accessControlRepository{pool: pool}
}

const accessControlColumns = `subject_id, name, email, role, company_name, department, is_active, permissions, document_path, updated_at`

func (r *accessControlRepository) GetBySubjectID(ctx context.Context, subjectID string) (*domain.AccessControl, error) {
	query := `SELECT ` + accessControlColumns + ` FROM users_access_control WHERE subject_id=$1`

	rows, err := r.pool.Query(ctx, query, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records, err := scanAccessControls(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &records[0], nil
}

func (r *accessControlRepository) ListByCompany(ctx context.Context, company string, limit, offset int) ([]domain.AccessControl, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + accessControlColumns + ` FROM users_access_control
        WHERE company_name=$1 AND is_active ORDER BY name ASC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, company, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAccessControls(rows)
}

func scanAccessControls(rows pgx.Rows) ([]domain.AccessControl, error) {
	var result []domain.AccessControl
	for rows.Next() {
		var record domain.AccessControl
		if err := rows.Scan(
			&record.SubjectID,
			&record.Name,
			&record.Email,
			&record.Role,
			&record.CompanyName,
			&record.Department,
			&record.IsActive,
			&record.Permissions,
			&record.DocumentPath,
			&record.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
