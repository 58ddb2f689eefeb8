package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-tracker/app/entity"
)

// ApplicationFilter narrows a user's application listing. Zero values mean
// "no constraint". Status filters on the derived current status, i.e. the
// latest row in application_statuses.
type ApplicationFilter struct {
	Search string
	Status string
	From   *time.Time
	To     *time.Time
}

type ApplicationRepository struct {
	db DBTX
}

func NewApplicationRepository(db DBTX) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) Create(ctx context.Context, app *entity.Application) error {
	query := `
		INSERT INTO applications (company, position, website, application_type,
		                          created_by, deleted, deleted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		app.Company,
		app.Position,
		app.Website,
		app.ApplicationType,
		app.CreatedBy,
		app.Deleted,
		app.DeletedAt,
		app.CreatedAt,
		app.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	app.ID = uint64(id)
	return nil
}

func (r *ApplicationRepository) CreateStatus(ctx context.Context, status *entity.ApplicationStatus) error {
	query := `
		INSERT INTO application_statuses (application_id, status_type, created_by,
		                                  test_type, interview_type, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		status.ApplicationID,
		status.StatusType,
		status.CreatedBy,
		status.TestType,
		status.InterviewType,
		status.Notes,
		status.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	status.ID = uint64(id)
	return nil
}

// FindByID returns the application regardless of deletion state; services
// decide whether a soft-deleted row counts as absent.
func (r *ApplicationRepository) FindByID(ctx context.Context, id uint64) (*entity.Application, error) {
	query := `
		SELECT id, company, position, website, application_type, created_by,
		       deleted, deleted_at, created_at, updated_at
		FROM applications WHERE id = ?
	`
	app := &entity.Application{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&app.ID,
		&app.Company,
		&app.Position,
		&app.Website,
		&app.ApplicationType,
		&app.CreatedBy,
		&app.Deleted,
		&app.DeletedAt,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return app, nil
}

func (r *ApplicationRepository) Update(ctx context.Context, app *entity.Application) error {
	query := `
		UPDATE applications SET company = ?, position = ?, website = ?,
		                        application_type = ?, updated_at = ?
		WHERE id = ? AND deleted = 0
	`
	_, err := r.db.ExecContext(ctx, query,
		app.Company,
		app.Position,
		app.Website,
		app.ApplicationType,
		app.UpdatedAt,
		app.ID,
	)
	return err
}

func (r *ApplicationRepository) SoftDelete(ctx context.Context, id uint64, now time.Time) (int64, error) {
	query := `
		UPDATE applications SET deleted = 1, deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted = 0
	`
	result, err := r.db.ExecContext(ctx, query, now, now, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func filterClauses(userID uint64, filter ApplicationFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(" WHERE created_by = ? AND deleted = 0")
	args := []any{userID}

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		b.WriteString(" AND (company LIKE ? OR position LIKE ? OR website LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	if filter.Status != "" {
		// Same (created_at, id) ordering as CurrentStatus, so two statuses
		// appended at the same instant resolve to the same winner here.
		b.WriteString(` AND id IN (
			SELECT application_id FROM application_statuses s1
			WHERE status_type = ? AND s1.id = (
				SELECT s2.id FROM application_statuses s2
				WHERE s2.application_id = s1.application_id
				ORDER BY s2.created_at DESC, s2.id DESC LIMIT 1))`)
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		b.WriteString(" AND created_at >= ?")
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		b.WriteString(" AND created_at <= ?")
		args = append(args, *filter.To)
	}

	return b.String(), args
}

func (r *ApplicationRepository) CountByUser(ctx context.Context, userID uint64, filter ApplicationFilter) (int64, error) {
	where, args := filterClauses(userID, filter)
	var total int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM applications"+where, args...).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *ApplicationRepository) ListByUser(ctx context.Context, userID uint64, filter ApplicationFilter, limit, offset int64) ([]*entity.Application, error) {
	where, args := filterClauses(userID, filter)
	query := `
		SELECT id, company, position, website, application_type, created_by,
		       deleted, deleted_at, created_at, updated_at
		FROM applications` + where + `
		ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []*entity.Application
	for rows.Next() {
		app := &entity.Application{}
		if err := rows.Scan(
			&app.ID,
			&app.Company,
			&app.Position,
			&app.Website,
			&app.ApplicationType,
			&app.CreatedBy,
			&app.Deleted,
			&app.DeletedAt,
			&app.CreatedAt,
			&app.UpdatedAt,
		); err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

const statusColumns = `id, application_id, status_type, created_by, test_type, interview_type, notes, created_at`

func (r *ApplicationRepository) scanStatuses(rows *sql.Rows) ([]*entity.ApplicationStatus, error) {
	defer rows.Close()

	var statuses []*entity.ApplicationStatus
	for rows.Next() {
		status := &entity.ApplicationStatus{}
		if err := rows.Scan(
			&status.ID,
			&status.ApplicationID,
			&status.StatusType,
			&status.CreatedBy,
			&status.TestType,
			&status.InterviewType,
			&status.Notes,
			&status.CreatedAt,
		); err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, rows.Err()
}

// StatusesByApplicationIDs loads the full history for a page of
// applications in one query, oldest first per application.
func (r *ApplicationRepository) StatusesByApplicationIDs(ctx context.Context, ids []uint64) ([]*entity.ApplicationStatus, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?, ", len(ids)-1) + "?"
	query := `
		SELECT ` + statusColumns + `
		FROM application_statuses WHERE application_id IN (` + placeholders + `)
		ORDER BY application_id, created_at, id`

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return r.scanStatuses(rows)
}

func (r *ApplicationRepository) History(ctx context.Context, applicationID uint64) ([]*entity.ApplicationStatus, error) {
	query := `
		SELECT ` + statusColumns + `
		FROM application_statuses WHERE application_id = ?
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, applicationID)
	if err != nil {
		return nil, err
	}
	return r.scanStatuses(rows)
}

// CurrentStatus is a read-time derivation, never a cached column. Ties on
// created_at fall back to insertion order via id.
func (r *ApplicationRepository) CurrentStatus(ctx context.Context, applicationID uint64) (*entity.ApplicationStatus, error) {
	query := `
		SELECT ` + statusColumns + `
		FROM application_statuses WHERE application_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`

	status := &entity.ApplicationStatus{}
	err := r.db.QueryRowContext(ctx, query, applicationID).Scan(
		&status.ID,
		&status.ApplicationID,
		&status.StatusType,
		&status.CreatedBy,
		&status.TestType,
		&status.InterviewType,
		&status.Notes,
		&status.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return status, nil
}
