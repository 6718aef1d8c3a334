package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/itconnect/internal/domain"
)

// ComplaintFilter captures list scope and search parameters.
type ComplaintFilter struct {
	CreatedBy   *string
	AssignedTo  *string
	CompanyName *string
	Department  *string
	GlobalOnly  bool
	Statuses    []domain.ComplaintStatus
	Urgencies   []domain.ComplaintUrgency
	SearchTerm  *string
	Limit       int
	Offset      int
}

// ComplaintRepository encapsulates complaint persistence.
type ComplaintRepository interface {
	Create(ctx context.Context, complaint *domain.Complaint) error
	Update(ctx context.Context, complaint *domain.Complaint) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Complaint, error)
	List(ctx context.Context, filter ComplaintFilter) ([]domain.Complaint, error)
	Stats(ctx context.Context, filter ComplaintFilter) (*domain.ComplaintStats, error)
}

type complaintRepository struct {
	pool *pgxpool.Pool
}

// NewComplaintRepository instantiates repository.
func NewComplaintRepository(pool *pgxpool.Pool) ComplaintRepository {
	return &complaintRepository{pool: pool}
}

const complaintColumns = `id, external_key, title, description, company_name, department, created_by, assigned_to,
               assigned_by, status, urgency, is_global, created_at, updated_at, closed_at`

func (r *complaintRepository) Create(ctx context.Context, complaint *domain.Complaint) error {
	const query = `
        INSERT INTO complaints (external_key, title, description, company_name, department, created_by, assigned_to, assigned_by, status, urgency, is_global)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		complaint.ExternalKey,
		complaint.Title,
		complaint.Description,
		complaint.CompanyName,
		complaint.Department,
		complaint.CreatedBy,
		complaint.AssignedTo,
		complaint.AssignedBy,
		complaint.Status,
		complaint.Urgency,
		complaint.IsGlobal,
	).Scan(&complaint.ID, &complaint.CreatedAt, &complaint.UpdatedAt)
}

func (r *complaintRepository) Update(ctx context.Context, complaint *domain.Complaint) error {
	const query = `
        UPDATE complaints SET title=$1, description=$2, assigned_to=$3, assigned_by=$4, status=$5, urgency=$6,
            is_global=$7, closed_at=$8, updated_at=NOW()
        WHERE id=$9
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		complaint.Title,
		complaint.Description,
		complaint.AssignedTo,
		complaint.AssignedBy,
		complaint.Status,
		complaint.Urgency,
		complaint.IsGlobal,
		complaint.ClosedAt,
		complaint.ID,
	).Scan(&complaint.UpdatedAt)
}

func (r *complaintRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return pgx.ErrNoRows
	}
	cmd, err := r.pool.Exec(ctx, `DELETE FROM complaints WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *complaintRepository) GetByID(ctx context.Context, id string) (*domain.Complaint, error) {
	if !validID(id) {
		return nil, pgx.ErrNoRows
	}
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id=$1`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	complaints, err := scanComplaints(rows)
	if err != nil {
		return nil, err
	}
	if len(complaints) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &complaints[0], nil
}

func (r *complaintRepository) List(ctx context.Context, filter ComplaintFilter) ([]domain.Complaint, error) {
	where, args := buildComplaintWhere(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM complaints WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		complaintColumns, where, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanComplaints(rows)
}

func (r *complaintRepository) Stats(ctx context.Context, filter ComplaintFilter) (*domain.ComplaintStats, error) {
	where, args := buildComplaintWhere(filter)
	query := fmt.Sprintf(`
        SELECT status, urgency, assigned_to IS NULL, COUNT(*)
        FROM complaints WHERE %s
        GROUP BY status, urgency, assigned_to IS NULL`, where)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &domain.ComplaintStats{
		ByStatus:  map[domain.ComplaintStatus]int{},
		ByUrgency: map[domain.ComplaintUrgency]int{},
	}
	for rows.Next() {
		var (
			status     domain.ComplaintStatus
			urgency    domain.ComplaintUrgency
			unassigned bool
			count      int
		)
		if err := rows.Scan(&status, &urgency, &unassigned, &count); err != nil {
			return nil, err
		}
		stats.Total += count
		stats.ByStatus[status] += count
		stats.ByUrgency[urgency] += count
		if unassigned {
			stats.Unassigned += count
		}
	}
	return stats, rows.Err()
}

func buildComplaintWhere(filter ComplaintFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.CompanyName != nil {
		args = append(args, *filter.CompanyName)
		clauses = append(clauses, fmt.Sprintf("company_name=$%d", len(args)))
	}
	if filter.Department != nil {
		args = append(args, *filter.Department)
		clauses = append(clauses, fmt.Sprintf("department=$%d", len(args)))
	}
	if filter.GlobalOnly {
		clauses = append(clauses, "is_global")
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Urgencies) > 0 {
		placeholders := make([]string, len(filter.Urgencies))
		for i, urgency := range filter.Urgencies {
			args = append(args, urgency)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("urgency IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	return strings.Join(clauses, " AND "), args
}

func scanComplaints(rows pgx.Rows) ([]domain.Complaint, error) {
	var result []domain.Complaint
	for rows.Next() {
		var complaint domain.Complaint
		if err := rows.Scan(
			&complaint.ID,
			&complaint.ExternalKey,
			&complaint.Title,
			&complaint.Description,
			&complaint.CompanyName,
			&complaint.Department,
			&complaint.CreatedBy,
			&complaint.AssignedTo,
			&complaint.AssignedBy,
			&complaint.Status,
			&complaint.Urgency,
			&complaint.IsGlobal,
			&complaint.CreatedAt,
			&complaint.UpdatedAt,
			&complaint.ClosedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, complaint)
	}
	return result, rows.Err()
}
