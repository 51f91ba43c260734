package response

import (
	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON shape of every non-2xx response.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	// ProcessorError carries the upstream payment processor's error payload, when there is one.
	ProcessorError any `json:"processorError,omitempty"`
}

// Error aborts the request with status and an ErrorBody.
func Error(c *gin.Context, status int, msg string, details string) {
	c.AbortWithStatusJSON(status, &ErrorBody{Error: msg, Details: details})
}

// UpstreamError aborts the request with status and the processor payload attached.
func UpstreamError(c *gin.Context, status int, msg string, details string, upstream any) {
	c.AbortWithStatusJSON(status, &ErrorBody{Error: msg, Details: details, ProcessorError: upstream})
}

// WebhookAck is the acknowledgment returned for every verified webhook delivery.
type WebhookAck struct {
	Received bool `json:"received"`
}
