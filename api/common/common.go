package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Status string      `json:"status"`
	Msg    string      `json:"msg"`
	Data   interface{} `json:"data,omitempty"`
}

func Respond(c *gin.Context, httpStatus int, status string, message string, data interface{}) {
	c.JSON(httpStatus, Response{
		Status: status,
		Msg:    message,
		Data:   data,
	})
}

// RespondSuccess sends a success response with data.
func RespondSuccess(c *gin.Context, data interface{}) {
	Respond(c, http.StatusOK, "success", "", data)
}

// RespondSuccessMessage sends a success response with message and data.
func RespondSuccessMessage(c *gin.Context, message string, data interface{}) {
	Respond(c, http.StatusOK, "success", message, data)
}

// RespondError sends an error response with message.
func RespondError(c *gin.Context, httpStatus int, message string) {
	Respond(c, httpStatus, "error", message, nil)
}

// RespondErrorData sends an error response carrying details, e.g. field errors.
func RespondErrorData(c *gin.Context, httpStatus int, message string, data interface{}) {
	Respond(c, httpStatus, "error", message, data)
}

// RespondErrorAbort sends an error response and stops the handler chain.
func RespondErrorAbort(c *gin.Context, httpStatus int, message string) {
	RespondError(c, httpStatus, message)
	c.Abort()
}
