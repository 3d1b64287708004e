package authtest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// errorBody mirrors the API's error shape: {"detail": "..."}.
type errorBody struct {
	Detail string `json:"detail"`
}

type messageBody struct {
	Message string `json:"message"`
}

// respondError aborts the chain and writes a detail error.
func respondError(c *gin.Context, code int, detail string) {
	c.Abort()
	c.JSON(code, errorBody{Detail: detail})
}

func respondMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, messageBody{Message: message})
}

func badRequest(c *gin.Context, err error) {
	respondError(c, http.StatusUnprocessableEntity, err.Error())
}

func unauthorized(c *gin.Context, detail string) {
	respondError(c, http.StatusUnauthorized, detail)
}
