package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/brosis-admin-api/internal/middleware"
	"github.com/noah-isme/brosis-admin-api/internal/models"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth    *AuthHandler
	Catalog *CatalogHandler
	Student *StudentHandler
	User    *UserHandler
	Group   *GroupHandler
	Metrics *MetricsHandler
}

// Register mounts the admin API on r. authn must populate the JWT claims.
func Register(r gin.IRouter, h Handlers, authn gin.HandlerFunc) {
	r.POST("/auth/login", h.Auth.Login)

	r.GET("/students/export-brosis-students", authn, middleware.RequireRoles(models.RoleAdmin, models.RoleBroSis), h.Student.ExportBroSisStudents)

	groups := r.Group("/groups", authn, middleware.RequireRoles(models.RoleMentor, models.RoleAdmin))
	groups.GET("", h.Group.List)
	groups.POST("", h.Group.Create)
	groups.GET("/:id", h.Group.Get)
	groups.PUT("/:id", h.Group.Update)
	groups.DELETE("/:id", h.Group.Delete)
	groups.POST("/:id/members", h.Group.AddMembers)
	groups.DELETE("/:id/members/:userId", h.Group.RemoveMember)
	groups.PUT("/:id/leader/:userId", h.Group.AssignLeader)
	groups.DELETE("/:id/leader", h.Group.RemoveLeader)

	admin := r.Group("", authn, middleware.RequireRoles(models.RoleAdmin))

	catalog := admin.Group("/catalog")
	catalog.GET("", h.Catalog.List)
	catalog.POST("/areas", h.Catalog.CreateArea)
	catalog.POST("/areas/:id/houses", h.Catalog.CreateHouse)

	students := admin.Group("/students")
	students.GET("", h.Student.List)
	students.POST("", h.Student.Create)
	students.GET("/ids", h.Student.IDs)
	students.GET("/stats", h.Student.Stats)
	students.GET("/:id", h.Student.Get)
	students.PUT("/:id", h.Student.Update)
	students.DELETE("/:id", h.Student.Delete)
	students.PATCH("/:id/toggle-status", h.Student.ToggleStatus)
	students.POST("/import", h.Student.Import)
	students.POST("/bulk-delete", h.Student.BulkDelete)
	students.POST("/assign-to-brosis", h.Student.Assign)
	students.POST("/unassign-from-brosis", h.Student.Unassign)
	students.POST("/distribute-to-brosis", h.Student.Distribute)

	users := admin.Group("/users")
	users.GET("", h.User.List)
	users.GET("/:id", h.User.Get)
	users.PATCH("/:id/toggle-status", h.User.ToggleStatus)
	users.POST("/import", h.User.Import)
	users.POST("/bulk-delete", h.User.BulkDelete)
	users.POST("/bulk-status", h.User.BulkStatus)
	users.POST("/bulk-reset-password", h.User.BulkResetPassword)
	users.POST("/export", h.User.Export)

	admin.GET("/metrics/summary", h.Metrics.Summary)
}
