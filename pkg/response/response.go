package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/sheetgrader/pkg/errors"
)

// Envelope is the common response contract of the kiosk status API.
type Envelope struct {
	Data  interface{}      `json:"data,omitempty"`
	Error *appErrors.Error `json:"error,omitempty"`
}

// JSON sends a success response.
func JSON(c *gin.Context, status int, data interface{}) {
	c.Header("Cache-Control", "no-store")
	c.JSON(status, Envelope{Data: data})
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	status := http.StatusInternalServerError
	switch appErr.Kind {
	case appErrors.KindUser, appErrors.KindData:
		status = http.StatusBadRequest
	case appErrors.KindTerminal:
		status = http.StatusForbidden
	case appErrors.KindNetwork, appErrors.KindHardware:
		status = http.StatusServiceUnavailable
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(status, Envelope{Error: appErr})
}
