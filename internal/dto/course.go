package dto

// CreateCourseRequest creates a catalog course together with its first version.
type CreateCourseRequest struct {
	Code          string   `json:"code" validate:"required,max=32"`
	Title         string   `json:"title" validate:"required,max=255"`
	Description   string   `json:"description"`
	Credits       float64  `json:"credits" validate:"gt=0,lte=60"`
	Prerequisites []string `json:"prerequisites" validate:"omitempty,dive,required"`
}

// PublishVersionRequest publishes a new active version of an existing course.
type PublishVersionRequest struct {
	Title         string   `json:"title" validate:"required,max=255"`
	Description   string   `json:"description"`
	Credits       float64  `json:"credits" validate:"gt=0,lte=60"`
	Prerequisites []string `json:"prerequisites" validate:"omitempty,dive,required"`
}

// ValidatePrerequisitesRequest checks a candidate prerequisite list without saving it.
type ValidatePrerequisitesRequest struct {
	Prerequisites []string `json:"prerequisites" validate:"omitempty,dive,required"`
}
