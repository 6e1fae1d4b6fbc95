package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck - обработчик для проверки работоспособности сервиса.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
