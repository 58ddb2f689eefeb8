package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-tracker/app/dto"
	httpdto "github.com/vibast-solutions/ms-go-tracker/app/dto/http"
	"github.com/vibast-solutions/ms-go-tracker/app/entity"
	"github.com/vibast-solutions/ms-go-tracker/app/repository"
)

var (
	ErrApplicationNotFound    = errors.New("application not found")
	ErrForbidden              = errors.New("operation not permitted")
	ErrInvalidStatusType      = errors.New("invalid status type")
	ErrInvalidTestType        = errors.New("invalid test type")
	ErrInvalidInterviewType   = errors.New("invalid interview type")
	ErrInvalidApplicationType = errors.New("invalid application type")
	ErrStatusDetailMismatch   = errors.New("status detail does not match status type")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type applicationRepository interface {
	FindByID(ctx context.Context, id uint64) (*entity.Application, error)
	Update(ctx context.Context, app *entity.Application) error
	SoftDelete(ctx context.Context, id uint64, now time.Time) (int64, error)
	CountByUser(ctx context.Context, userID uint64, filter repository.ApplicationFilter) (int64, error)
	ListByUser(ctx context.Context, userID uint64, filter repository.ApplicationFilter, limit, offset int64) ([]*entity.Application, error)
	StatusesByApplicationIDs(ctx context.Context, ids []uint64) ([]*entity.ApplicationStatus, error)
	History(ctx context.Context, applicationID uint64) ([]*entity.ApplicationStatus, error)
	CurrentStatus(ctx context.Context, applicationID uint64) (*entity.ApplicationStatus, error)
	CreateStatus(ctx context.Context, status *entity.ApplicationStatus) error
}

type ApplicationService interface {
	Create(ctx context.Context, userID uint64, req *httpdto.CreateApplicationRequest) (*dto.ApplicationResult, error)
	Get(ctx context.Context, actor *Claims, applicationID uint64) (*dto.ApplicationResult, error)
	Update(ctx context.Context, actor *Claims, applicationID uint64, req *httpdto.UpdateApplicationRequest) (*dto.ApplicationResult, error)
	List(ctx context.Context, userID uint64, req *httpdto.ListApplicationsRequest) (*dto.ApplicationListResult, error)
	SoftDelete(ctx context.Context, actor *Claims, applicationID uint64) error
	AppendStatus(ctx context.Context, userID uint64, req *httpdto.AppendStatusRequest) (*entity.ApplicationStatus, error)
	History(ctx context.Context, actor *Claims, applicationID uint64) ([]*entity.ApplicationStatus, error)
}

type applicationService struct {
	db      *sql.DB
	appRepo applicationRepository
}

func NewApplicationService(db *sql.DB, appRepo applicationRepository) ApplicationService {
	return &applicationService{
		db:      db,
		appRepo: appRepo,
	}
}

// Create inserts the application and its implicit first "Applied"
// status in one transaction, stamped with the same instant.
func (s *applicationService) Create(ctx context.Context, userID uint64, req *httpdto.CreateApplicationRequest) (*dto.ApplicationResult, error) {
	if !entity.IsApplicationType(req.ApplicationType) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidApplicationType, req.ApplicationType)
	}

	now := time.Now().UTC()
	app := &entity.Application{
		Company:         strings.TrimSpace(req.Company),
		Position:        strings.TrimSpace(req.Position),
		ApplicationType: req.ApplicationType,
		CreatedBy:       userID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.Website != nil && strings.TrimSpace(*req.Website) != "" {
		app.Website = sql.NullString{String: strings.TrimSpace(*req.Website), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	txAppRepo := repository.NewApplicationRepository(tx)
	if err = txAppRepo.Create(ctx, app); err != nil {
		return nil, err
	}

	status := &entity.ApplicationStatus{
		ApplicationID: app.ID,
		StatusType:    entity.StatusApplied,
		CreatedBy:     userID,
		CreatedAt:     now,
	}
	if err = txAppRepo.CreateStatus(ctx, status); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return &dto.ApplicationResult{
		Application:   app,
		CurrentStatus: status,
	}, nil
}

func (s *applicationService) Get(ctx context.Context, actor *Claims, applicationID uint64) (*dto.ApplicationResult, error) {
	app, err := s.appRepo.FindByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app == nil || app.Deleted {
		return nil, ErrApplicationNotFound
	}
	if app.CreatedBy != actor.UserID && actor.Role != entity.RoleAdmin {
		return nil, ErrForbidden
	}

	current, err := s.appRepo.CurrentStatus(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	return &dto.ApplicationResult{
		Application:   app,
		CurrentStatus: current,
	}, nil
}

// Update replaces the editable fields of the application; status moves
// stay with AppendStatus so the history remains append-only.
func (s *applicationService) Update(ctx context.Context, actor *Claims, applicationID uint64, req *httpdto.UpdateApplicationRequest) (*dto.ApplicationResult, error) {
	if !entity.IsApplicationType(req.ApplicationType) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidApplicationType, req.ApplicationType)
	}

	app, err := s.appRepo.FindByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app == nil || app.Deleted {
		return nil, ErrApplicationNotFound
	}
	if app.CreatedBy != actor.UserID && actor.Role != entity.RoleAdmin {
		return nil, ErrForbidden
	}

	app.Company = strings.TrimSpace(req.Company)
	app.Position = strings.TrimSpace(req.Position)
	app.ApplicationType = req.ApplicationType
	app.Website = sql.NullString{}
	if req.Website != nil && strings.TrimSpace(*req.Website) != "" {
		app.Website = sql.NullString{String: strings.TrimSpace(*req.Website), Valid: true}
	}
	app.UpdatedAt = time.Now().UTC()

	if err = s.appRepo.Update(ctx, app); err != nil {
		return nil, err
	}

	current, err := s.appRepo.CurrentStatus(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	return &dto.ApplicationResult{
		Application:   app,
		CurrentStatus: current,
	}, nil
}

func (s *applicationService) List(ctx context.Context, userID uint64, req *httpdto.ListApplicationsRequest) (*dto.ApplicationListResult, error) {
	if req.Status != "" && !entity.IsStatusType(req.Status) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatusType, req.Status)
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.Size
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	filter := repository.ApplicationFilter{
		Search: req.Search,
		Status: req.Status,
		From:   req.From,
		To:     req.To,
	}

	total, err := s.appRepo.CountByUser(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	result := &dto.ApplicationListResult{
		Applications: []*dto.ApplicationResult{},
		Total:        total,
		Page:         page,
		Size:         size,
	}
	if total == 0 {
		return result, nil
	}

	offset := int64(page-1) * int64(size)
	apps, err := s.appRepo.ListByUser(ctx, userID, filter, int64(size), offset)
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return result, nil
	}

	ids := make([]uint64, 0, len(apps))
	for _, app := range apps {
		ids = append(ids, app.ID)
	}

	statuses, err := s.appRepo.StatusesByApplicationIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	current := make(map[uint64]*entity.ApplicationStatus, len(apps))
	for _, status := range statuses {
		prev, ok := current[status.ApplicationID]
		if !ok || laterStatus(status, prev) {
			current[status.ApplicationID] = status
		}
	}

	for _, app := range apps {
		result.Applications = append(result.Applications, &dto.ApplicationResult{
			Application:   app,
			CurrentStatus: current[app.ID],
		})
	}

	return result, nil
}

// laterStatus reports whether a supersedes b in the history ordering:
// newest created_at wins, row id breaks same-instant ties.
func laterStatus(a, b *entity.ApplicationStatus) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func (s *applicationService) SoftDelete(ctx context.Context, actor *Claims, applicationID uint64) error {
	app, err := s.appRepo.FindByID(ctx, applicationID)
	if err != nil {
		return err
	}
	if app == nil {
		return ErrApplicationNotFound
	}
	if app.CreatedBy != actor.UserID && actor.Role != entity.RoleAdmin {
		return ErrForbidden
	}
	if app.Deleted {
		return nil
	}

	_, err = s.appRepo.SoftDelete(ctx, applicationID, time.Now().UTC())
	return err
}

func (s *applicationService) AppendStatus(ctx context.Context, userID uint64, req *httpdto.AppendStatusRequest) (*entity.ApplicationStatus, error) {
	if !entity.IsStatusType(req.StatusType) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatusType, req.StatusType)
	}

	status := &entity.ApplicationStatus{
		ApplicationID: req.ApplicationID,
		StatusType:    req.StatusType,
		CreatedBy:     userID,
		CreatedAt:     time.Now().UTC(),
	}

	if req.TestType != nil {
		if req.StatusType != entity.StatusTest {
			return nil, fmt.Errorf("%w: test_type requires status %s", ErrStatusDetailMismatch, entity.StatusTest)
		}
		if !entity.IsTestType(*req.TestType) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidTestType, *req.TestType)
		}
		status.TestType = sql.NullString{String: *req.TestType, Valid: true}
	}
	if req.InterviewType != nil {
		if req.StatusType != entity.StatusInterview {
			return nil, fmt.Errorf("%w: interview_type requires status %s", ErrStatusDetailMismatch, entity.StatusInterview)
		}
		if !entity.IsInterviewType(*req.InterviewType) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidInterviewType, *req.InterviewType)
		}
		status.InterviewType = sql.NullString{String: *req.InterviewType, Valid: true}
	}
	if req.Notes != nil && strings.TrimSpace(*req.Notes) != "" {
		status.Notes = sql.NullString{String: *req.Notes, Valid: true}
	}

	app, err := s.appRepo.FindByID(ctx, req.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app == nil || app.Deleted {
		return nil, ErrApplicationNotFound
	}
	if app.CreatedBy != userID {
		return nil, ErrForbidden
	}

	if err = s.appRepo.CreateStatus(ctx, status); err != nil {
		return nil, err
	}

	return status, nil
}

func (s *applicationService) History(ctx context.Context, actor *Claims, applicationID uint64) ([]*entity.ApplicationStatus, error) {
	app, err := s.appRepo.FindByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrApplicationNotFound
	}
	if app.CreatedBy != actor.UserID && actor.Role != entity.RoleAdmin {
		return nil, ErrForbidden
	}

	return s.appRepo.History(ctx, applicationID)
}
