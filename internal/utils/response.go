package utils

import "github.com/gin-gonic/gin"

func Success(c *gin.Context, data any) {
	c.JSON(200, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{
		"success": false,
		"error":   msg,
	})
}

// ErrorCode is Error with a machine readable code clients can switch on
func ErrorCode(c *gin.Context, status int, msg, code string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}
