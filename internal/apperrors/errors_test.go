package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrLockConflict, http.StatusConflict},
		{ErrSlotUnavailable, http.StatusBadRequest},
		{ErrSlotFullyBooked, http.StatusBadRequest},
		{ErrNoAvailability, http.StatusBadRequest},
		{ErrAlreadyCancelled, http.StatusBadRequest},
		{ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("reserve slot 7: %w", ErrSlotFullyBooked), http.StatusBadRequest},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, HTTPStatus(c.err), c.err.Error())
	}
}

func TestRetryableOnlyForLockConflict(t *testing.T) {
	assert.True(t, Retryable(fmt.Errorf("slot 7: %w", ErrLockConflict)))
	assert.False(t, Retryable(ErrSlotFullyBooked))
	assert.False(t, Public(errors.New("dial tcp: timeout")))
}
