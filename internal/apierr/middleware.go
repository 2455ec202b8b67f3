package apierr

import "github.com/gin-gonic/gin"

// Middleware converts the last gin error, if any, into the taxonomy's HTTP
// response shape. Handlers should call c.Error(err) and return rather than
// writing the response themselves.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		c.JSON(Status(err), gin.H{"error": err.Error()})
	}
}
