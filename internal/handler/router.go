package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-student-records/internal/middleware"
)

// Handlers groups the HTTP handlers mounted under the API prefix.
type Handlers struct {
	Auth     *AuthHandler
	Students *StudentHandler
	Panel    *PanelHandler
}

// Guards authenticate callers. Required rejects requests without valid credentials; Optional stores
// the claims when they are valid and lets anonymous requests through.
type Guards struct {
	Required gin.HandlerFunc
	Optional gin.HandlerFunc
}

// RegisterRoutes mounts the API.
func RegisterRoutes(r gin.IRouter, h Handlers, guards Guards) {
	authGroup := r.Group("/auth")
	authGroup.POST("/login", h.Auth.Login)
	authGroup.POST("/refresh", h.Auth.Refresh)

	r.GET("/panel/route", guards.Optional, h.Panel.Route)

	secured := r.Group("")
	secured.Use(guards.Required, middleware.RequireRoles(middleware.PanelRoles...))

	secured.POST("/auth/logout", h.Auth.Logout)
	secured.GET("/auth/me", h.Auth.Me)

	students := secured.Group("/students")
	students.GET("", h.Students.List)
	students.GET("/export.csv", h.Students.Export)
	students.GET("/:id", h.Students.Get)
	students.GET("/:id/card.pdf", h.Students.Card)
	students.POST("", h.Students.Create)
	students.PUT("/:id", h.Students.Update)
	students.DELETE("/:id", h.Students.Delete)

	p := secured.Group("/panel")
	p.GET("/shell", h.Panel.Shell)
	p.GET("/state", h.Panel.State)
	p.POST("/load", h.Panel.Load)
	p.PUT("/search", h.Panel.Search)
	p.POST("/form", h.Panel.OpenCreate)
	p.PATCH("/form", h.Panel.ApplyDraft)
	p.DELETE("/form", h.Panel.CloseForm)
	p.POST("/form/subjects/:subject", h.Panel.ToggleSubject)
	p.POST("/form/submit", h.Panel.SubmitForm)
	p.POST("/records/:id/edit", h.Panel.Edit)
	p.POST("/records/:id/view", h.Panel.View)
	p.POST("/records/:id/delete", h.Panel.RequestDelete)
	p.DELETE("/detail", h.Panel.CloseDetail)
	p.POST("/delete/confirm", h.Panel.ConfirmDelete)
	p.DELETE("/delete", h.Panel.CancelDelete)
	p.POST("/theme/toggle", h.Panel.ToggleTheme)
	p.POST("/sign-out", h.Panel.SignOut)
}
