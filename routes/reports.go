package routes

import (
	"net/http"
	"strconv"

	"document-portal/utils"

	"github.com/gin-gonic/gin"
)

func SetupReportRoutes(router *gin.Engine, store ReportStore) {
	router.GET("/reports", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		reports, err := store.Recent(ctx, c.Query("kind"), limit)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list reports", gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"reports": reports,
			"count":   len(reports),
		})
	})
}
