package api

import "github.com/starford/vizbase/internal/models"

// VerificationResponse is returned by POST /api/verify/{group}/{name}.
type VerificationResponse struct {
	Verification models.Verification `json:"verification" validate:"required"`
	// DiffURL points at the failure evidence when the run did not match.
	DiffURL string `json:"diff_url,omitempty" example:"/api/diffs/ReportsSummary/results-pie"`
}

// BaselineListResponse wraps baseline listings.
type BaselineListResponse struct {
	Baselines []models.BaselineMetadata `json:"baselines" validate:"required"`
	Total     int                       `json:"total" example:"12" validate:"required"`
}

// VerificationListResponse wraps verification history.
type VerificationListResponse struct {
	Verifications []models.Verification `json:"verifications" validate:"required"`
}
