package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenRequiresURL(t *testing.T) {
	db, err := Open(context.Background(), Config{})
	assert.Nil(t, db)
	assert.ErrorContains(t, err, "database URL is required")
}
