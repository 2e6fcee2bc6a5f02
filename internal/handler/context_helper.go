package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-student-records/internal/middleware"
	"github.com/noah-isme/sma-student-records/internal/models"
	"github.com/noah-isme/sma-student-records/internal/service"
)

// claimsFromContext returns the claims stored by the JWT middleware, or nil for anonymous calls.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, _ := c.Value(middleware.ContextUserKey).(*models.JWTClaims)
	return claims
}

// requestMeta captures the client details recorded with auth events.
func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}
