package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-planner-api/internal/models"
	appErrors "github.com/noah-isme/course-planner-api/pkg/errors"
)

// Envelope represents the common response contract.
type Envelope struct {
	OK          bool                   `json:"ok"`
	Code        string                 `json:"code,omitempty"`
	Message     string                 `json:"message,omitempty"`
	AccessToken string                 `json:"accessToken,omitempty"`
	Item        interface{}            `json:"item,omitempty"`
	Data        interface{}            `json:"data,omitempty"`
	Error       *appErrors.Error       `json:"error,omitempty"`
	Pagination  *models.Pagination     `json:"pagination,omitempty"`
	Meta        map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	noStore(c)
	envelope := Envelope{OK: true, Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// CreatedItem responds with HTTP 201 and the new resource under item.
func CreatedItem(c *gin.Context, item interface{}) {
	noStore(c)
	c.JSON(http.StatusCreated, Envelope{OK: true, Item: item})
}

// Token responds with HTTP 200, the access token at the top level and the full session under data.
func Token(c *gin.Context, accessToken string, session interface{}) {
	noStore(c)
	c.JSON(http.StatusOK, Envelope{OK: true, AccessToken: accessToken, Data: session})
}

// Error sends an error response converting the error to the common structure.
// Structured details attached to the error are exposed under data; wrapped causes never are.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	noStore(c)
	body := *appErr
	if !appErrors.IsExpected(appErr) {
		_ = c.Error(err)
		body.Message = appErrors.ErrInternal.Message
	}
	c.JSON(appErr.Status, Envelope{Code: body.Code, Message: body.Message, Error: &body, Data: appErr.Details})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
