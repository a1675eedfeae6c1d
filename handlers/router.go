package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"

	"timesheets/middleware"
	"timesheets/models"
	"timesheets/timesheet"
)

// NewRouter wires every route of the service.
func NewRouter(db *gorm.DB, auth *middleware.Auth, svc *timesheet.Service) http.Handler {
	authHandler := NewAuthHandler(db, auth)
	timesheetHandler := NewTimesheetHandler(svc)
	approvalHandler := NewApprovalHandler(svc)
	adminHandler := NewAdminHandler(db)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)

	// Public routes
	router.Post("/login", authHandler.Login)

	// Protected routes
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Post("/logout", authHandler.Logout)
		r.Post("/change-password", authHandler.ChangePassword)

		// Routes that require password to be changed first
		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.RequirePasswordChange)

			r.Get("/weeks", timesheetHandler.Weeks)
			r.Get("/breaks", timesheetHandler.Breaks)
			r.Get("/timesheets/{userID}/{weekEnding}", timesheetHandler.GetWeek)
			r.Put("/timesheets/{userID}/{weekEnding}", timesheetHandler.PutWeek)

			r.Route("/approvals", func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleApprover, models.RoleAdmin))
				r.Get("/", approvalHandler.List)
				r.Post("/approve", approvalHandler.Approve)
				r.Post("/revoke", approvalHandler.Revoke)
				r.Get("/export", approvalHandler.Export)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin))
				r.Get("/companies", adminHandler.ListCompanies)
				r.Post("/companies", adminHandler.CreateCompany)
				r.Get("/breaks", adminHandler.ListBreaks)
				r.Post("/breaks", adminHandler.CreateBreak)
				r.Get("/users", adminHandler.ListUsers)
				r.Post("/users", adminHandler.CreateUser)
				r.Put("/users/{id}", adminHandler.UpdateUser)
			})
		})
	})

	return router
}
