package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gradlink-hub/mentor-vetting/config"
	"github.com/gradlink-hub/mentor-vetting/internal/application/command"
	"github.com/gradlink-hub/mentor-vetting/internal/application/query"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/application"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/shared"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/testsession"
	"github.com/gradlink-hub/mentor-vetting/pkg/logger"
)

// maxBodyBytes caps request bodies; the largest legitimate payload is a
// full answer sheet, far below this.
const maxBodyBytes = 64 << 10

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "GradLink Mentor Vetting API",
		"version":     "v1",
		"description": "Application intake, competency testing and decisioning for mentor candidates",
		"endpoints": map[string]string{
			"health":       "/health",
			"applications": "/api/v1/applications",
			"status":       "/api/v1/applications/status",
			"test":         "/api/v1/test/{token}",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"uptime": s.Uptime().String(),
	})
}

// handleReady handles the readiness probe endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// APPLICANT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// submitApplicationRequest is the intake payload.
type submitApplicationRequest struct {
	FullName          string `json:"full_name"`
	Email             string `json:"email"`
	PhoneNumber       string `json:"phone_number"`
	Specialization    string `json:"specialization"`
	YearsOfExperience int    `json:"years_of_experience"`
	LinkedInUrl       string `json:"linkedin_url"`
	Bio               string `json:"bio"`
	CurrentPosition   string `json:"current_position"`
	Company           string `json:"company"`
}

// handleSubmitApplication handles POST /api/v1/applications
func (s *Server) handleSubmitApplication(w http.ResponseWriter, r *http.Request) {
	var req submitApplicationRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.SubmitApplication.Handle(r.Context(), command.SubmitApplicationCommand{
		FullName:          req.FullName,
		Email:             req.Email,
		PhoneNumber:       req.PhoneNumber,
		Specialization:    req.Specialization,
		YearsOfExperience: req.YearsOfExperience,
		LinkedInUrl:       req.LinkedInUrl,
		Bio:               req.Bio,
		CurrentPosition:   req.CurrentPosition,
		Company:           req.Company,
		CorrelationID:     requestIDFrom(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"application_id": result.ApplicationID,
		"status":         result.Status,
	})
}

// handleApplicationStatus handles GET /api/v1/applications/status?email=
func (s *Server) handleApplicationStatus(w http.ResponseWriter, r *http.Request) {
	email := getQueryParam(r, "email", "")
	if email == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "email query parameter is required")
		return
	}

	view, err := s.deps.GetApplicationStatus.Handle(r.Context(), query.GetApplicationStatusQuery{Email: email})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// handleRequestRetry handles POST /api/v1/applications/retry
func (s *Server) handleRequestRetry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.RequestRetry.Handle(r.Context(), command.RequestRetryCommand{
		Email:         req.Email,
		CorrelationID: requestIDFrom(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"application_id": result.ApplicationID,
		"status":         result.Status,
		"attempt":        result.Attempt,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// TEST SESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// openTestResponse is what the candidate sees when the link opens. It
// carries the sanitized question set; correct options never leave the
// server.
type openTestResponse struct {
	SessionID        string                         `json:"session_id"`
	Questions        []testsession.ApplicantQuestion `json:"questions"`
	StartedAt        time.Time                      `json:"started_at"`
	Deadline         time.Time                      `json:"deadline"`
	RemainingSeconds int64                          `json:"remaining_seconds"`
	FirstAccess      bool                           `json:"first_access"`
}

// handleOpenTest handles GET /api/v1/test/{token}
func (s *Server) handleOpenTest(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	result, err := s.deps.OpenSession.Handle(r.Context(), command.OpenSessionCommand{
		Token:         token,
		CorrelationID: requestIDFrom(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, openTestResponse{
		SessionID:        result.SessionID,
		Questions:        result.Questions,
		StartedAt:        result.StartedAt,
		Deadline:         result.Deadline,
		RemainingSeconds: int64(result.Remaining.Seconds()),
		FirstAccess:      result.FirstAccess,
	})
}

// submitTestRequest carries the answer sheet, answers aligned by index
// with the questions served on open.
type submitTestRequest struct {
	Answers []string `json:"answers"`
}

// handleSubmitTest handles POST /api/v1/test/{token}/submit
func (s *Server) handleSubmitTest(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	var req submitTestRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.GradeSubmission.Handle(r.Context(), command.GradeSubmissionCommand{
		Token:         token,
		Answers:       req.Answers,
		CorrelationID: requestIDFrom(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := map[string]interface{}{
		"session_id":      result.SessionID,
		"correct_count":   result.CorrectCount,
		"total_questions": result.TotalQuestions,
		"score":           result.Score,
	}
	if result.Decision != nil {
		resp["status"] = result.Decision.Status
		resp["approved"] = result.Decision.Approved
		resp["attempt"] = result.Decision.Attempt
		if result.Decision.RetryAllowedAt != nil {
			resp["retry_allowed_at"] = result.Decision.RetryAllowedAt
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListApplications handles GET /api/v1/admin/applications
func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	if s.deps.Flags != nil && !s.deps.Flags.IsEnabled(config.FeatureAdminListing) {
		writeJSONError(w, http.StatusNotImplemented, "feature_disabled", "Admin listing is disabled")
		return
	}

	page, err := s.deps.ListApplications.Handle(r.Context(), query.ListApplicationsQuery{
		Status:   application.Status(getQueryParam(r, "status", "")),
		Page:     getQueryParamInt(r, "page", 1),
		PageSize: getQueryParamInt(r, "page_size", 50),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// handleSendTest handles POST /api/v1/admin/applications/{id}/send-test
//
// The response confirms issuance but never echoes the token; it travels
// only inside the invitation email.
func (s *Server) handleSendTest(w http.ResponseWriter, r *http.Request) {
	applicationID := r.PathValue("id")

	result, err := s.deps.SendTest.Handle(r.Context(), command.SendTestCommand{
		ApplicationID: applicationID,
		IsAdmin:       true,
		CorrelationID: requestIDFrom(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"session_id":               result.SessionID,
		"total_questions":          result.TotalQuestions,
		"expires_at":               result.ExpiresAt,
		"replaced_expired_session": result.ReplacedExpiredSession,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / ERROR PLUMBING
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody decodes a JSON request body, writing the error response
// itself on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return false
	}
	return true
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsValidation(err) || errors.Is(err, shared.ErrInvalidFormat):
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())

	case errors.Is(err, shared.ErrUnauthorized):
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", err.Error())

	case errors.Is(err, shared.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, "forbidden", err.Error())

	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, shared.ErrExpired):
		writeJSONError(w, http.StatusGone, "expired", err.Error())

	case errors.Is(err, shared.ErrTooEarly):
		writeJSONError(w, http.StatusTooEarly, "too_early", err.Error())

	case shared.IsConflict(err) || errors.Is(err, shared.ErrInvalidState) || errors.Is(err, shared.ErrStateTransition):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())

	case shared.IsExternalService(err):
		s.logger.Error("upstream failure", logger.Err(err), logger.String("path", r.URL.Path))
		writeJSONError(w, http.StatusBadGateway, "upstream_error", "A backing service failed, please try again")

	default:
		s.logger.Error("unhandled error", logger.Err(err), logger.String("path", r.URL.Path))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
