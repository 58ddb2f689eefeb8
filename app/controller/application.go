package controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/vibast-solutions/ms-go-tracker/app/dto"
	httpdto "github.com/vibast-solutions/ms-go-tracker/app/dto/http"
	"github.com/vibast-solutions/ms-go-tracker/app/entity"
	"github.com/vibast-solutions/ms-go-tracker/app/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type ApplicationController struct {
	applicationService service.ApplicationService
}

func NewApplicationController(applicationService service.ApplicationService) *ApplicationController {
	return &ApplicationController{applicationService: applicationService}
}

// actorFromContext rebuilds the authenticated caller from the values the
// auth middleware stored on the request context.
func actorFromContext(ctx echo.Context) (*service.Claims, bool) {
	userID, ok := ctx.Get("user_id").(uint64)
	if !ok {
		return nil, false
	}

	claims := &service.Claims{UserID: userID}
	if email, ok := ctx.Get("user_email").(string); ok {
		claims.Email = email
	}
	if role, ok := ctx.Get("user_role").(string); ok {
		claims.Role = role
	}
	return claims, true
}

func (c *ApplicationController) Create(ctx echo.Context) error {
	actor, ok := actorFromContext(ctx)
	if !ok {
		logrus.Warn("Create application failed: missing user_id in context")
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	req, err := httpdto.NewCreateApplicationRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind create application request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.WithField("user_id", actor.UserID).Debug("Create application validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	result, err := c.applicationService.Create(ctx.Request().Context(), actor.UserID, req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidApplicationType) {
			logrus.WithField("user_id", actor.UserID).Warn("Create application failed: invalid application type")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
		}
		logrus.WithError(err).WithField("user_id", actor.UserID).Error("Create application failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithFields(logrus.Fields{
		"user_id":        actor.UserID,
		"application_id": result.Application.ID,
	}).Info("Application created")

	return ctx.JSON(http.StatusCreated, toApplicationResponse(result))
}

func (c *ApplicationController) List(ctx echo.Context) error {
	actor, ok := actorFromContext(ctx)
	if !ok {
		logrus.Warn("List applications failed: missing user_id in context")
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	req, err := httpdto.NewListApplicationsRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to parse list applications query")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	if err = req.Validate(); err != nil {
		logrus.WithField("user_id", actor.UserID).Debug("List applications validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	result, err := c.applicationService.List(ctx.Request().Context(), actor.UserID, req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidStatusType) {
			logrus.WithField("user_id", actor.UserID).Warn("List applications failed: invalid status filter")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
		}
		logrus.WithError(err).WithField("user_id", actor.UserID).Error("List applications failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	response := &httpdto.ApplicationListResponse{
		Applications: make([]*httpdto.ApplicationResponse, 0, len(result.Applications)),
		Total:        result.Total,
		Page:         result.Page,
		Size:         result.Size,
	}
	for _, app := range result.Applications {
		response.Applications = append(response.Applications, toApplicationResponse(app))
	}

	return ctx.JSON(http.StatusOK, response)
}

func (c *ApplicationController) Get(ctx echo.Context) error {
	actor, ok := actorFromContext(ctx)
	if !ok {
		logrus.Warn("Get application failed: missing user_id in context")
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	applicationID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "id must be a positive integer"})
	}

	result, err := c.applicationService.Get(ctx.Request().Context(), actor, applicationID)
	if err != nil {
		if errors.Is(err, service.ErrApplicationNotFound) {
			logrus.WithField("application_id", applicationID).Warn("Get application failed: not found")
			return ctx.JSON(http.StatusNotFound, httpdto.ErrorResponse{Error: "application not found"})
		}
		if errors.Is(err, service.ErrForbidden) {
			logrus.WithFields(logrus.Fields{
				"user_id":        actor.UserID,
				"application_id": applicationID,
			}).Warn("Get application failed: forbidden")
			return ctx.JSON(http.StatusForbidden, httpdto.ErrorResponse{Error: "operation not permitted"})
		}
		logrus.WithError(err).WithField("application_id", applicationID).Error("Get application failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, toApplicationResponse(result))
}

func (c *ApplicationController) Update(ctx echo.Context) error {
	actor, ok := actorFromContext(ctx)
	if !ok {
		logrus.Warn("Update application failed: missing user_id in context")
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	applicationID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "id must be a positive integer"})
	}

	req, err := httpdto.NewUpdateApplicationRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind update application request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.WithField("user_id", actor.UserID).Debug("Update application validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	result, err := c.applicationService.Update(ctx.Request().Context(), actor, applicationID, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrApplicationNotFound):
			logrus.WithField("application_id", applicationID).Warn("Update application failed: not found")
			return ctx.JSON(http.StatusNotFound, httpdto.ErrorResponse{Error: "application not found"})
		case errors.Is(err, service.ErrForbidden):
			logrus.WithFields(logrus.Fields{
				"user_id":        actor.UserID,
				"application_id": applicationID,
			}).Warn("Update application failed: forbidden")
			return ctx.JSON(http.StatusForbidden, httpdto.ErrorResponse{Error: "operation not permitted"})
		case errors.Is(err, service.ErrInvalidApplicationType):
			logrus.WithField("application_id", applicationID).Warn("Update application failed: invalid application type")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
		default:
			logrus.WithError(err).WithField("application_id", applicationID).Error("Update application failed")
			return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
		}
	}

	logrus.WithFields(logrus.Fields{
		"user_id":        actor.UserID,
		"application_id": applicationID,
	}).Info("Application updated")

	return ctx.JSON(http.StatusOK, toApplicationResponse(result))
}

func (c *ApplicationController) Delete(ctx echo.Context) error {
	actor, ok := actorFromContext(ctx)
	if !ok {
		logrus.Warn("Delete application failed: missing user_id in context")
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	applicationID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "id must be a positive integer"})
	}

	if err = c.applicationService.SoftDelete(ctx.Request().Context(), actor, applicationID); err != nil {
		if errors.Is(err, service.ErrApplicationNotFound) {
			logrus.WithField("application_id", applicationID).Warn("Delete application failed: not found")
			return ctx.JSON(http.StatusNotFound, httpdto.ErrorResponse{Error: "application not found"})
		}
		if errors.Is(err, service.ErrForbidden) {
			logrus.WithFields(logrus.Fields{
				"user_id":        actor.UserID,
				"application_id": applicationID,
			}).Warn("Delete application failed: forbidden")
			return ctx.JSON(http.StatusForbidden, httpdto.ErrorResponse{Error: "operation not permitted"})
		}
		logrus.WithError(err).WithField("application_id", applicationID).Error("Delete application failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithFields(logrus.Fields{
		"user_id":        actor.UserID,
		"application_id": applicationID,
	}).Info("Application deleted")

	return ctx.JSON(http.StatusOK, &httpdto.DeleteApplicationResponse{Message: "application deleted successfully"})
}

func (c *ApplicationController) AppendStatus(ctx echo.Context) error {
	actor, ok := actorFromContext(ctx)
	if !ok {
		logrus.Warn("Append status failed: missing user_id in context")
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	req, err := httpdto.NewAppendStatusRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind append status request")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.WithField("user_id", actor.UserID).Debug("Append status validation failed")
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
	}

	status, err := c.applicationService.AppendStatus(ctx.Request().Context(), actor.UserID, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrApplicationNotFound):
			logrus.WithField("application_id", req.ApplicationID).Warn("Append status failed: application not found")
			return ctx.JSON(http.StatusNotFound, httpdto.ErrorResponse{Error: "application not found"})
		case errors.Is(err, service.ErrForbidden):
			logrus.WithFields(logrus.Fields{
				"user_id":        actor.UserID,
				"application_id": req.ApplicationID,
			}).Warn("Append status failed: forbidden")
			return ctx.JSON(http.StatusForbidden, httpdto.ErrorResponse{Error: "operation not permitted"})
		case errors.Is(err, service.ErrInvalidStatusType),
			errors.Is(err, service.ErrInvalidTestType),
			errors.Is(err, service.ErrInvalidInterviewType),
			errors.Is(err, service.ErrStatusDetailMismatch):
			logrus.WithField("application_id", req.ApplicationID).Warn("Append status failed: invalid status payload")
			return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: err.Error()})
		default:
			logrus.WithError(err).WithField("application_id", req.ApplicationID).Error("Append status failed")
			return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
		}
	}

	logrus.WithFields(logrus.Fields{
		"application_id": status.ApplicationID,
		"status_type":    status.StatusType,
	}).Info("Status appended")

	return ctx.JSON(http.StatusCreated, toStatusResponse(status))
}

func (c *ApplicationController) History(ctx echo.Context) error {
	actor, ok := actorFromContext(ctx)
	if !ok {
		logrus.Warn("Status history failed: missing user_id in context")
		return ctx.JSON(http.StatusUnauthorized, httpdto.ErrorResponse{Error: "unauthorized"})
	}

	applicationID, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, httpdto.ErrorResponse{Error: "id must be a positive integer"})
	}

	history, err := c.applicationService.History(ctx.Request().Context(), actor, applicationID)
	if err != nil {
		if errors.Is(err, service.ErrApplicationNotFound) {
			logrus.WithField("application_id", applicationID).Warn("Status history failed: not found")
			return ctx.JSON(http.StatusNotFound, httpdto.ErrorResponse{Error: "application not found"})
		}
		if errors.Is(err, service.ErrForbidden) {
			logrus.WithFields(logrus.Fields{
				"user_id":        actor.UserID,
				"application_id": applicationID,
			}).Warn("Status history failed: forbidden")
			return ctx.JSON(http.StatusForbidden, httpdto.ErrorResponse{Error: "operation not permitted"})
		}
		logrus.WithError(err).WithField("application_id", applicationID).Error("Status history failed")
		return ctx.JSON(http.StatusInternalServerError, httpdto.ErrorResponse{Error: "internal server error"})
	}

	response := &httpdto.StatusHistoryResponse{
		ApplicationID: applicationID,
		History:       make([]*httpdto.StatusResponse, 0, len(history)),
	}
	for _, status := range history {
		response.History = append(response.History, toStatusResponse(status))
	}

	return ctx.JSON(http.StatusOK, response)
}

func toApplicationResponse(result *dto.ApplicationResult) *httpdto.ApplicationResponse {
	app := result.Application
	res := &httpdto.ApplicationResponse{
		ID:              app.ID,
		Company:         app.Company,
		Position:        app.Position,
		ApplicationType: app.ApplicationType,
		CreatedAt:       app.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       app.UpdatedAt.Format(time.RFC3339),
	}
	if app.Website.Valid {
		website := app.Website.String
		res.Website = &website
	}
	if result.CurrentStatus != nil {
		res.CurrentStatus = toStatusResponse(result.CurrentStatus)
	}
	return res
}

func toStatusResponse(status *entity.ApplicationStatus) *httpdto.StatusResponse {
	res := &httpdto.StatusResponse{
		ID:            status.ID,
		ApplicationID: status.ApplicationID,
		StatusType:    status.StatusType,
		CreatedAt:     status.CreatedAt.Format(time.RFC3339),
	}
	if status.TestType.Valid {
		testType := status.TestType.String
		res.TestType = &testType
	}
	if status.InterviewType.Valid {
		interviewType := status.InterviewType.String
		res.InterviewType = &interviewType
	}
	if status.Notes.Valid {
		notes := status.Notes.String
		res.Notes = &notes
	}
	return res
}
