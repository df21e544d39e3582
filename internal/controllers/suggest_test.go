package controllers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.add(t, "Learning Golang Generics")
	env.add(t, "Rust for Gophers")
	env.add(t, "Baking Sourdough")
	gone := env.add(t, "Golang Internals")
	_, err := env.ctrl.SoftDelete(ctx, owner, gone.ID)
	require.NoError(t, err)

	found, err := env.ctrl.Suggest(ctx, owner, "golang generic", 5)
	require.NoError(t, err)
	require.NotEmpty(t, found)
	assert.Equal(t, "Learning Golang Generics", found[0].Title)
	assert.Zero(t, found[0].Distance)

	found, err = env.ctrl.Suggest(ctx, owner, "sourdoug", 5)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Baking Sourdough", found[0].Title)

	found, err = env.ctrl.Suggest(ctx, owner, "gofers", 5)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Rust for Gophers", found[0].Title)
	assert.Equal(t, 2, found[0].Distance)

	found, err = env.ctrl.Suggest(ctx, owner, "internals", 5)
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = env.ctrl.Suggest(ctx, owner, "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestTitleDistance(t *testing.T) {
	assert.Zero(t, titleDistance("gen", "learning golang generics"))
	assert.Equal(t, 1, titleDistance("golang generica", "learning golang generics"))
	assert.Equal(t, 1, titleDistance("golang", "golan"))
}
