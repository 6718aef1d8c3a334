package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/itconnect/internal/domain"
)

// ErrEmailTaken is returned by ApplyUpdate when another credential already
// uses the requested email.
var ErrEmailTaken = errors.New("email already in use")

const uniqueViolation = "23505"

// ProfileUpdate is an already authorized field-update map for one profile document.
type ProfileUpdate struct {
	SubjectID    string
	DocumentPath string
	Fields       map[string]any
}

// ProfileRepository persists profile documents and their denormalized copies.
type ProfileRepository interface {
	GetByPath(ctx context.Context, documentPath string) (*domain.Profile, error)
	ApplyUpdate(ctx context.Context, update ProfileUpdate) error
}

// accessControlMirrorColumns maps profile keys to the columns copied into
// users_access_control. Role, company and department stay profile-only: the
// access record is authoritative for them and changes only through role
// upgrades and provisioning.
var accessControlMirrorColumns = []struct {
	field  string
	column string
}{
	{"name", "name"},
	{"email", "email"},
}

type profileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository returns a Postgres-backed implementation.
func NewProfileRepository(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepository{pool: pool}
}

func (r *profileRepository) GetByPath(ctx context.Context, documentPath string) (*domain.Profile, error) {
	const query = `
        SELECT document_path, subject_id, data, updated_at
        FROM profiles WHERE document_path=$1`

	var profile domain.Profile
	if err := r.pool.QueryRow(ctx, query, documentPath).Scan(
		&profile.DocumentPath,
		&profile.SubjectID,
		&profile.Data,
		&profile.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ApplyUpdate merges the fields into the profile document, copies name and
// email into the access-control record, moves the login email and refreshes
// the search index, all in one transaction.
func (r *profileRepository) ApplyUpdate(ctx context.Context, update ProfileUpdate) error {
	if len(update.Fields) == 0 {
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cmd, err := tx.Exec(ctx, `
        UPDATE profiles SET data = data || $1::jsonb, updated_at=NOW()
        WHERE document_path=$2`, update.Fields, update.DocumentPath)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	args := []any{}
	sets := []string{}
	for _, m := range accessControlMirrorColumns {
		value, ok := update.Fields[m.field].(string)
		if !ok {
			continue
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", m.column, len(args)))
	}
	if len(sets) > 0 {
		args = append(args, update.SubjectID)
		query := fmt.Sprintf(`UPDATE users_access_control SET %s, updated_at=NOW() WHERE subject_id=$%d`,
			strings.Join(sets, ", "), len(args))
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("mirror access control: %w", err)
		}
	}

	if email, ok := update.Fields["email"].(string); ok {
		if _, err := tx.Exec(ctx, `UPDATE credentials SET email=$1, updated_at=NOW() WHERE subject_id=$2`,
			email, update.SubjectID); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return ErrEmailTaken
			}
			return fmt.Errorf("update login email: %w", err)
		}
	}

	_, hasName := update.Fields["name"]
	_, hasEmail := update.Fields["email"]
	if hasName || hasEmail {
		const query = `
            INSERT INTO user_search_index (subject_id, name, email, company_name)
            SELECT subject_id, name, email, company_name FROM users_access_control WHERE subject_id=$1
            ON CONFLICT (subject_id) DO UPDATE
            SET name=EXCLUDED.name, email=EXCLUDED.email, company_name=EXCLUDED.company_name`
		if _, err := tx.Exec(ctx, query, update.SubjectID); err != nil {
			return fmt.Errorf("refresh search index: %w", err)
		}
	}

	return tx.Commit(ctx)
}
