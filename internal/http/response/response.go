package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BigPharmacist/ChatApp/internal/platform/apierr"
)

// ErrorBody is the flat error envelope every endpoint answers with.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorBody{Error: msg, Code: code})
}

// RespondAPIError uses the status carried by an *apierr.Error, else fallback.
func RespondAPIError(c *gin.Context, err error, fallback int) {
	status, code := apierr.StatusOf(err, fallback)
	var ae *apierr.Error
	if errors.As(err, &ae) && ae.Err != nil {
		err = ae.Err
	}
	RespondError(c, status, code, err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
