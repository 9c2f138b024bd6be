package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecrementStockRejectsNonPositiveQuantity(t *testing.T) {
	repo := NewCatalogRepository(nil)

	// the guard runs before any SQL, so no database is needed
	assert.Error(t, repo.DecrementStock(nil, "p1", 0))
	assert.Error(t, repo.DecrementStock(nil, "p1", -1))
}
