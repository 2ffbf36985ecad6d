package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "sentinel", err: ErrTaskNotFound, want: KindNotFound},
		{name: "wrapped sentinel", err: fmt.Errorf("update: %w", ErrNotTaskCreator), want: KindForbidden},
		{name: "wrapped cause", err: Wrap(KindTransient, "storage timeout", context.DeadlineExceeded), want: KindTransient},
		{name: "plain error", err: fmt.Errorf("boom"), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestMapErrorToHTTP(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		debug       bool
		wantStatus  int
		wantCode    string
		wantDetails bool
	}{
		{name: "validation", err: Validation("title is required"), wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
		{name: "not found", err: ErrTaskNotFound, wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "forbidden", err: ErrNotTaskCreator, wantStatus: http.StatusForbidden, wantCode: "FORBIDDEN"},
		{name: "unauthenticated", err: ErrInvalidCredentials, wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHENTICATED"},
		{name: "conflict", err: ErrEmailTaken, wantStatus: http.StatusConflict, wantCode: "CONFLICT"},
		{name: "transient", err: Wrap(KindTransient, "db", context.DeadlineExceeded), wantStatus: http.StatusServiceUnavailable, wantCode: "TRANSIENT"},
		{name: "internal hides details", err: fmt.Errorf("secret stack"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
		{name: "internal debug shows details", err: fmt.Errorf("secret stack"), debug: true, wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR", wantDetails: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := MapErrorToHTTP(tt.err, tt.debug)
			assert.Equal(t, tt.wantStatus, httpErr.StatusCode)
			assert.Equal(t, tt.wantCode, httpErr.Code)
			assert.Equal(t, tt.wantDetails, httpErr.ToErrorResponse().Details != "")
		})
	}
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, KindNotFound, KindForStatus(http.StatusNotFound))
	assert.Equal(t, KindUnauthenticated, KindForStatus(http.StatusUnauthorized))
	assert.Equal(t, KindTransient, KindForStatus(http.StatusServiceUnavailable))
	assert.Equal(t, KindValidation, KindForStatus(http.StatusMethodNotAllowed))
	assert.Equal(t, KindInternal, KindForStatus(http.StatusBadGateway))
}
