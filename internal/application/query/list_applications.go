package query

import (
	"context"
	"fmt"
	"time"

	"github.com/gradlink-hub/mentor-vetting/internal/domain/application"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST APPLICATIONS QUERY
// Admin surface: paginated listing, optionally filtered by status.
// ══════════════════════════════════════════════════════════════════════════════

// ListApplicationsQuery contains filtering and pagination parameters.
type ListApplicationsQuery struct {
	// Status filters by lifecycle state; empty means all.
	Status application.Status

	// Page is 1-based.
	Page int

	// PageSize caps the page; defaults to 50, max 200.
	PageSize int
}

func (q ListApplicationsQuery) normalized() ListApplicationsQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 50
	}
	if q.PageSize > 200 {
		q.PageSize = 200
	}
	return q
}

// ApplicationListItem is one row of the admin listing.
type ApplicationListItem struct {
	ApplicationID  string             `json:"application_id"`
	FullName       string             `json:"full_name"`
	Email          string             `json:"email"`
	Specialization string             `json:"specialization"`
	Experience     int                `json:"years_of_experience"`
	Status         application.Status `json:"status"`
	TestAttempts   int                `json:"test_attempts"`
	FinalScore     *float64           `json:"final_score,omitempty"`
	SubmittedAt    time.Time          `json:"submitted_at"`
}

// ApplicationListPage is a page of the admin listing.
type ApplicationListPage struct {
	Items    []ApplicationListItem `json:"items"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Total    int                   `json:"total"`
}

// ListApplicationsHandler handles the ListApplicationsQuery.
type ListApplicationsHandler struct {
	appRepo application.Repository
}

// NewListApplicationsHandler creates a new ListApplicationsHandler.
func NewListApplicationsHandler(appRepo application.Repository) *ListApplicationsHandler {
	return &ListApplicationsHandler{appRepo: appRepo}
}

// Handle executes the query.
func (h *ListApplicationsHandler) Handle(ctx context.Context, q ListApplicationsQuery) (*ApplicationListPage, error) {
	q = q.normalized()
	if q.Status != "" && !q.Status.IsValid() {
		return nil, fmt.Errorf("list_applications: unknown status: %s", q.Status)
	}

	opts := application.DefaultListOptions().
		WithOffset((q.Page - 1) * q.PageSize).
		WithLimit(q.PageSize)

	var (
		apps  []*application.MentorApplication
		total int
		err   error
	)
	if q.Status == "" {
		apps, err = h.appRepo.List(ctx, opts)
		if err == nil {
			total, err = h.appRepo.Count(ctx)
		}
	} else {
		apps, err = h.appRepo.ListByStatus(ctx, q.Status, opts)
		if err == nil {
			total, err = h.appRepo.CountByStatus(ctx, q.Status)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("list_applications: %w", err)
	}

	items := make([]ApplicationListItem, len(apps))
	for i, app := range apps {
		items[i] = ApplicationListItem{
			ApplicationID:  app.ID,
			FullName:       app.FullName,
			Email:          app.Email.String(),
			Specialization: app.Specialization.String(),
			Experience:     app.YearsOfExperience,
			Status:         app.Status,
			TestAttempts:   app.TestAttempts,
			FinalScore:     app.FinalScore,
			SubmittedAt:    app.CreatedAt,
		}
	}

	return &ApplicationListPage{
		Items:    items,
		Page:     q.Page,
		PageSize: q.PageSize,
		Total:    total,
	}, nil
}
