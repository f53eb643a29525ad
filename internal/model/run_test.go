package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRun_Stamp(t *testing.T) {
	r := &Run{}
	r.Stamp()
	assert.Len(t, r.ID, 36)
	assert.False(t, r.CreatedAt.IsZero())

	created := time.Date(2020, 4, 12, 0, 0, 0, 0, time.UTC)
	kept := &Run{ID: "run-1", CreatedAt: created}
	kept.Stamp()
	assert.Equal(t, "run-1", kept.ID)
	assert.Equal(t, created, kept.CreatedAt)
}
