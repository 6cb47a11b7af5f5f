package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/registrar-api/internal/middleware"
	"github.com/noah-isme/registrar-api/internal/models"
)

// Handlers groups every HTTP handler mounted by Register.
type Handlers struct {
	Auth        *AuthHandler
	Courses     *CourseHandler
	Sections    *SectionHandler
	Grades      *GradeHandler
	Enrollments *EnrollmentHandler
	Records     *RecordsHandler
	Audit       *AuditHandler
	Metrics     *MetricsHandler
}

// Register mounts the probes on root and the authenticated API under prefix.
func Register(r *gin.Engine, prefix string, verifier middleware.TokenVerifier, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix, middleware.JWT(verifier))
	api.GET("/auth/me", h.Auth.Me)

	catalog := middleware.RequireRoles(models.RoleDepartmentHead, models.RoleAdmin)
	staffOnly := middleware.RequireRoles(models.RoleStaff, models.RoleAdmin)

	courses := api.Group("/courses")
	courses.POST("", catalog, h.Courses.Create)
	courses.GET("/:id/versions", h.Courses.ListVersions)
	courses.POST("/:id/versions", catalog, h.Courses.PublishVersion)
	courses.POST("/:id/prerequisites/validate", h.Courses.ValidatePrerequisites)
	courses.GET("/:id/prerequisite-graph", h.Courses.PrerequisiteGraph)

	sections := api.Group("/sections")
	sections.POST("", catalog, h.Sections.Create)
	sections.GET("/:id", h.Sections.Get)
	sections.PUT("/:id/enrollment-window", h.Sections.SetEnrollmentWindow)
	sections.GET("/:id/waitlist", h.Sections.Waitlist)
	sections.POST("/:id/assessments", h.Grades.CreateAssessment)
	sections.GET("/:id/assessments", h.Grades.ListAssessments)
	sections.POST("/:id/final-grades", h.Grades.PostFinalGrades)
	sections.PUT("/:id/lock", staffOnly, h.Grades.SetLock)

	enrollments := api.Group("/enrollments")
	enrollments.POST("", middleware.RequireRoles(models.RoleStudent), h.Enrollments.Enroll)
	enrollments.DELETE("/:id", h.Enrollments.Drop)
	enrollments.GET("/:id/projected-grade", h.Grades.ProjectedGrade)

	api.PUT("/grades", h.Grades.UpdateGrades)
	api.GET("/students/:id/transcript", h.Records.Transcript)

	terms := api.Group("/terms")
	terms.GET("/:id/gpas", staffOnly, h.Records.TermGPAs)
	terms.POST("/:id/term-end", staffOnly, h.Records.ProcessTermEnd)

	api.GET("/audit/:entity/:id", staffOnly, h.Audit.Trail)
}
