package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDefaults(t *testing.T) {
	err := Newf("boom: %d", 42).Build()
	require.Error(t, err)
	assert.Equal(t, "boom: 42", err.Error())
	assert.Equal(t, CategoryGeneric, err.Category)
	assert.False(t, err.Timestamp.IsZero())
}

func TestBuilderCategoryAndContext(t *testing.T) {
	base := NewStd("connect refused")
	err := New(base).
		Component("datastore").
		Category(CategoryDbConnection).
		Context("host", "db.local").
		Context("attempt", 3).
		Build()

	assert.Equal(t, "datastore", err.Component)
	assert.Equal(t, CategoryDbConnection, err.Category)

	ctx := err.GetContext()
	assert.Equal(t, "db.local", ctx["host"])
	assert.Equal(t, 3, ctx["attempt"])

	// returned context is a copy
	ctx["host"] = "mutated"
	assert.Equal(t, "db.local", err.GetContext()["host"])
}

func TestUnwrapPreservesChain(t *testing.T) {
	sentinel := NewStd("sentinel")
	wrapped := fmt.Errorf("outer: %w", sentinel)
	err := Wrap(wrapped).Category(CategoryDatabase).Build()

	assert.True(t, Is(err, sentinel))
	assert.Equal(t, wrapped.Error(), err.Error())
}

func TestIsMatchesByCategory(t *testing.T) {
	a := Newf("first").Category(CategoryTimeout).Build()
	b := Newf("second").Category(CategoryTimeout).Build()
	c := Newf("third").Category(CategoryDatabase).Build()

	assert.True(t, Is(a, b))
	assert.False(t, Is(a, c))
}

func TestHasCategory(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Newf("inner").Category(CategorySourceFetch).Build())
	assert.True(t, HasCategory(err, CategorySourceFetch))
	assert.False(t, HasCategory(err, CategoryDatabase))
	assert.False(t, HasCategory(NewStd("plain"), CategorySourceFetch))
}

func TestValidationError(t *testing.T) {
	err := ValidationError("bad input")
	assert.Equal(t, CategoryValidation, err.Category)
	assert.Equal(t, "bad input", err.Error())
}
