package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("Not found")))
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("wrapped: %w", Conflict("dup"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("delete: %w", Conflict("Category has related expenses"))
	assert.True(t, errors.Is(err, Conflict("")))
	assert.False(t, errors.Is(err, NotFound("")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:      http.StatusBadRequest,
		KindUnauthorized:    http.StatusUnauthorized,
		KindForbidden:       http.StatusForbidden,
		KindNotFound:        http.StatusNotFound,
		KindConflict:        http.StatusConflict,
		KindTooManyRequests: http.StatusTooManyRequests,
		KindInternal:        http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.HTTPStatus())
	}
}

func TestResponse(t *testing.T) {
	status, body := Response(fmt.Errorf("create: %w", Validation("Invalid input", FieldError{Field: "amount", Message: "must be greater than 0"})))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, Body{Message: "Invalid input", Errors: []FieldError{{Field: "amount", Message: "must be greater than 0"}}}, body)

	status, body = Response(Forbidden("Invalid CSRF token"))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Invalid CSRF token", body.Message)

	status, body = Response(errors.New("connection refused"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, Body{Message: "Internal server error"}, body)
}
