package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backend/internal/models"
)

func TestAppendUsernameHistory(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	old := "anna_old"

	history := appendUsernameHistory(nil, &old, "anna_new", now)
	require.Len(t, history, 1)
	assert.Equal(t, "anna_old", history[0].Username)
	assert.Equal(t, now, history[0].ChangedAt)

	// Appending again keeps the earlier entries.
	later := now.Add(time.Hour)
	newer := "anna_new"
	history = appendUsernameHistory(history, &newer, "anna_latest", later)
	require.Len(t, history, 2)
	assert.Equal(t, "anna_old", history[0].Username)
	assert.Equal(t, "anna_new", history[1].Username)
	assert.Equal(t, later, history[1].ChangedAt)
}

func TestAppendUsernameHistoryNoChange(t *testing.T) {
	now := time.Now()
	current := "anna"

	assert.Nil(t, appendUsernameHistory(nil, &current, "anna", now), "same username records nothing")
	assert.Nil(t, appendUsernameHistory(nil, nil, "anna", now), "first sighting records nothing")

	empty := ""
	assert.Nil(t, appendUsernameHistory(nil, &empty, "anna", now))

	existing := models.UsernameHistory{{Username: "kept", ChangedAt: now}}
	got := appendUsernameHistory(existing, &current, "anna", now)
	require.Len(t, got, 1, "no-op change must not grow the history")
	assert.Equal(t, "kept", got[0].Username)
}

func TestNilIfEmpty(t *testing.T) {
	assert.Nil(t, nilIfEmpty(""))
	v := nilIfEmpty("x")
	require.NotNil(t, v)
	assert.Equal(t, "x", *v)
}

func TestWhereAnd(t *testing.T) {
	assert.Equal(t, " WHERE a = 1", whereAnd("", "a = 1"))
	assert.Equal(t, " WHERE a = 1 AND b = 2", whereAnd(" WHERE a = 1", "b = 2"))
}
