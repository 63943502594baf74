// Package models - API response types and error handling.
// This file defines all outgoing API response structures with consistent formatting.
//
// Response Design Principles:
// - Consistent JSON structure across all endpoints
// - Optional fields use omitempty to reduce response size
// - The 429 body keeps the field names existing clients already parse
// - RFC3339 timestamps for international compatibility
package models

import (
	"net/http"
	"time"
)

type ListProductsResponse struct {
	Products   []Product `json:"products"`
	TotalCount int       `json:"total_count"`
}

type ProductMutationResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// ErrorResponse provides structured error information.
//
// Error Categories:
// - Validation errors: Input format/constraint violations
// - Not found errors: Resource doesn't exist
// - Internal errors: Server-side issues, never with internal detail
type ErrorResponse struct {
	Error     string            `json:"error"`                // Error type (always "error")
	Message   string            `json:"message"`              // Human-readable error description
	Code      string            `json:"code,omitempty"`       // Machine-readable error code
	Details   map[string]string `json:"details,omitempty"`    // Field-specific error details
	Timestamp time.Time         `json:"timestamp"`            // Error occurrence time
	RequestID string            `json:"request_id,omitempty"` // Unique request identifier
}

// RateLimitErrorResponse is the body of every 429 rejection.
type RateLimitErrorResponse struct {
	Timestamp         time.Time `json:"timestamp"`
	Status            int       `json:"status"`
	Error             string    `json:"error"`
	Message           string    `json:"message"`
	BucketKey         string    `json:"bucketKey,omitempty"`
	RetryAfterSeconds int64     `json:"retryAfterSeconds"`
}

func NewRateLimitErrorResponse(message, bucketKey string, retryAfterSeconds int64) *RateLimitErrorResponse {
	return &RateLimitErrorResponse{
		Timestamp:         time.Now(),
		Status:            http.StatusTooManyRequests,
		Error:             http.StatusText(http.StatusTooManyRequests),
		Message:           message,
		BucketKey:         bucketKey,
		RetryAfterSeconds: retryAfterSeconds,
	}
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AdminStatusResponse reports the runtime mode of the rate limiting and
// caching subsystems on this instance.
type AdminStatusResponse struct {
	InstanceID         string `json:"instance_id"`
	RateLimiting       string `json:"rate_limiting"`
	RateLimitingReason string `json:"rate_limiting_reason,omitempty"`
	LocalBucketCache   int    `json:"local_bucket_cache_size"`
	CacheType          string `json:"cache_type"`
	CacheName          string `json:"cache_name"`
	InvalidationType   string `json:"invalidation_type"`
	Channel            string `json:"channel,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// Health Status Constants
const (
	StatusHealthy   = "healthy"   // All systems operational
	StatusUnhealthy = "unhealthy" // Major system issues
	StatusDegraded  = "degraded"  // Partial functionality
)

// Standard HTTP Error Codes
const (
	ErrorCodeNotFound           = "NOT_FOUND"           // 404: Resource doesn't exist
	ErrorCodeBadRequest         = "BAD_REQUEST"         // 400: Invalid request format
	ErrorCodeValidation         = "VALIDATION_ERROR"    // 400: Input validation failed
	ErrorCodeUnauthorized       = "UNAUTHORIZED"        // 401: Missing or invalid credentials
	ErrorCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"  // 405: Method not supported on route
	ErrorCodeInternalError      = "INTERNAL_ERROR"      // 500: Server-side error
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503: Service temporarily down
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}
}

// AddComponent records a component and downgrades the overall status to
// degraded when the component is not healthy.
func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
	if status != StatusHealthy && h.Status == StatusHealthy {
		h.Status = StatusDegraded
	}
}
