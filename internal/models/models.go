// Package models defines the core data structures shared across the bot.
//
// It includes the transport-level message types, the persisted member
// profile, the per-user session and conversational memory records, and the
// transient intent value produced by the classifier.
package models

// MessageStatus represents the delivery status of an outbound reply.
type MessageStatus string

const (
	// MessageStatusSent indicates the reply was handed to the transport.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the reply reached the member's device.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the member read the reply.
	MessageStatusRead MessageStatus = "read"
	// MessageStatusFailed indicates the transport rejected the reply.
	MessageStatusFailed MessageStatus = "failed"
)

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusIgnored indicates the request was accepted but produced no reply (duplicate delivery).
	APIStatusIgnored APIStatus = "ignored"
)

// Receipt is a delivery event for an outbound reply.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// Response represents an inbound message from a member.
// MessageID is the transport's identifier and is used for duplicate suppression.
type Response struct {
	From      string `json:"from"`
	Body      string `json:"body"`
	MessageID string `json:"message_id,omitempty"`
	Time      int64  `json:"time"`
}

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().WithStatus(APIStatusOK).WithResult(result).Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().WithStatus(APIStatusError).WithMessage(message).Build()
}

// Ignored creates a response for a request that was accepted without producing a reply.
func Ignored(message string) APIResponse {
	return NewAPIResponseBuilder().WithStatus(APIStatusIgnored).WithMessage(message).Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().WithStatus(APIStatusOK).WithMessage(message).WithResult(result).Build()
}
