package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupHealthRoutes(router *gin.Engine, serviceName string) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": serviceName,
		})
	})
}
