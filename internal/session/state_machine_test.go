package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freechat/session-go/internal/errors"
	"github.com/freechat/session-go/internal/models"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from models.SessionState
		to   models.SessionState
		want bool
	}{
		{"draft to promoting", models.SessionStateDraft, models.SessionStatePromoting, true},
		{"promoting to active", models.SessionStatePromoting, models.SessionStateActive, true},
		{"promoting to error", models.SessionStatePromoting, models.SessionStateError, true},
		{"error retries promoting", models.SessionStateError, models.SessionStatePromoting, true},
		{"draft cannot jump to active", models.SessionStateDraft, models.SessionStateActive, false},
		{"active is terminal", models.SessionStateActive, models.SessionStateDraft, false},
		{"active cannot re-promote", models.SessionStateActive, models.SessionStatePromoting, false},
		{"error cannot go active directly", models.SessionStateError, models.SessionStateActive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTransition_Invalid(t *testing.T) {
	sess := &models.Session{State: models.SessionStateActive}

	err := transition(sess, models.SessionStatePromoting)
	require.Error(t, err)

	appErr := errors.GetAppError(err)
	assert.Equal(t, errors.ErrCodeInvalidState, appErr.Code)
	assert.Equal(t, models.SessionStateActive, sess.State)
}

func TestTransition_Valid(t *testing.T) {
	sess := &models.Session{State: models.SessionStateDraft}

	require.NoError(t, transition(sess, models.SessionStatePromoting))
	assert.Equal(t, models.SessionStatePromoting, sess.State)
}
