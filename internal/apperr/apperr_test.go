package apperr

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("approve order 7: %w", InvalidState("order is %s", "approved"))

	assert.Equal(t, KindInvalidState, KindOf(err))
	assert.True(t, Is(err, KindInvalidState))
	assert.Equal(t, "order is approved", Message(err))
	assert.Equal(t, http.StatusConflict, KindOf(err).HTTPStatus())
	assert.Equal(t, "invalid_state", KindOf(err).Code())
}

func TestUnknownErrorIsInternal(t *testing.T) {
	err := fmt.Errorf("disk on fire")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.False(t, Is(err, KindNotFound))
	assert.Equal(t, "internal server error", Message(err))
	assert.Equal(t, http.StatusInternalServerError, KindOf(err).HTTPStatus())
}
