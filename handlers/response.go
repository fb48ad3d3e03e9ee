// Package handlers exposes the services over HTTP with gin. Every response
// uses the envelope {"success": bool, "data": ...} or
// {"success": false, "error": {"code": ..., "message": ...}}.
package handlers

import (
	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}
