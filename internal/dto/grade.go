package dto

import (
	"time"

	"github.com/noah-isme/registrar-api/internal/models"
)

// CreateAssessmentRequest adds a weighted assessment to a section.
type CreateAssessmentRequest struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Weight      float64    `json:"weight" validate:"gte=0,lte=100"`
	TotalPoints float64    `json:"total_points" validate:"gt=0"`
	DueDate     *time.Time `json:"due_date"`
}

// UpdateGradesRequest submits a batch of raw scores.
type UpdateGradesRequest struct {
	Grades []models.ScoreEntry `json:"grades" validate:"required,min=1,dive"`
}
