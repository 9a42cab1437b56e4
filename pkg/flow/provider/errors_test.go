package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakeNetErr implements net.Error for categorization tests.
type fakeNetErr struct{ timeout bool }

func (e *fakeNetErr) Error() string   { return "fake net error" }
func (e *fakeNetErr) Timeout() bool   { return e.timeout }
func (e *fakeNetErr) Temporary() bool { return false }

// TestCategorize verifies error classification drives retry decisions.
func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, CategoryPermanent},
		{"rate limited", &CallError{StatusCode: 429}, CategoryTransient},
		{"service unavailable", &CallError{StatusCode: 503}, CategoryTransient},
		{"gateway timeout", &CallError{StatusCode: 504}, CategoryTransient},
		{"internal error", &CallError{StatusCode: 500}, CategoryTransient},
		{"bad gateway", &CallError{StatusCode: 502}, CategoryTransient},
		{"bad request", &CallError{StatusCode: 400}, CategoryInvalid},
		{"unprocessable", &CallError{StatusCode: 422}, CategoryInvalid},
		{"unauthorized", &CallError{StatusCode: 401}, CategoryPermanent},
		{"forbidden", &CallError{StatusCode: 403}, CategoryPermanent},
		{"teapot", &CallError{StatusCode: 418}, CategoryPermanent},
		{"application failure", &CallError{Message: "quota exhausted"}, CategoryPermanent},
		{"wrapped call error", fmt.Errorf("outer: %w", &CallError{StatusCode: 429}), CategoryTransient},
		{"context canceled", context.Canceled, CategoryPermanent},
		{"deadline exceeded", context.DeadlineExceeded, CategoryTransient},
		{"net timeout", &fakeNetErr{timeout: true}, CategoryTransient},
		{"net non-timeout", &fakeNetErr{}, CategoryPermanent},
		{"unknown", errors.New("mystery"), CategoryPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.err))
		})
	}
}

// TestIsRetryable verifies only transient errors retry.
func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&CallError{StatusCode: 503}))
	assert.False(t, IsRetryable(&CallError{StatusCode: 401}))
	assert.False(t, IsRetryable(errors.New("mystery")))
	assert.False(t, IsRetryable(nil))
}

// TestCallError_Error verifies both message shapes.
func TestCallError_Error(t *testing.T) {
	withStatus := &CallError{Provider: "image", Op: "blend", StatusCode: 503, Message: "try later"}
	assert.Equal(t, "image blend: HTTP 503: try later", withStatus.Error())

	appLevel := &CallError{Provider: "video", Op: "generate", Message: "quota exhausted"}
	assert.Equal(t, "video generate: quota exhausted", appLevel.Error())
}

// TestCategory_String verifies the category names.
func TestCategory_String(t *testing.T) {
	assert.Equal(t, "transient", CategoryTransient.String())
	assert.Equal(t, "permanent", CategoryPermanent.String())
	assert.Equal(t, "invalid", CategoryInvalid.String())
	assert.Equal(t, "unknown", Category(99).String())
}
