// internal/errors/errors_test.go
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Run("401 and 403 are token_invalid", func(t *testing.T) {
		for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
			err := fmt.Errorf("register: %w", &RemoteError{Op: "create hook", StatusCode: code, Err: errors.New("denied")})
			assert.Equal(t, ReasonTokenInvalid, Classify(err))
		}
	})

	t.Run("other remote statuses are other", func(t *testing.T) {
		err := &RemoteError{Op: "create hook", StatusCode: http.StatusUnprocessableEntity, Err: errors.New("validation failed")}
		assert.Equal(t, ReasonOther, Classify(err))
	})

	t.Run("non-remote errors are other", func(t *testing.T) {
		assert.Equal(t, ReasonOther, Classify(errors.New("connection reset")))
	})
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(fmt.Errorf("file a.py: %w", &EngineError{StatusCode: 503, Transient: true})))
	assert.False(t, IsTransient(&EngineError{StatusCode: 400}))
	assert.False(t, IsTransient(errors.New("plain")))
}

func TestEngineError_Message(t *testing.T) {
	assert.Equal(t, "analysis engine returned 502: bad gateway", (&EngineError{StatusCode: 502, Message: "bad gateway"}).Error())

	inner := errors.New("dial tcp: refused")
	err := &EngineError{Err: inner, Transient: true}
	assert.Equal(t, "analysis engine request failed: dial tcp: refused", err.Error())
	assert.ErrorIs(t, err, inner)
}
