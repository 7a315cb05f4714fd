package scopes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSatisfies_Wildcard(t *testing.T) {
	assert.True(t, Satisfies([]string{"admin:*"}, "admin:channels"))
	assert.False(t, Satisfies([]string{"admin:*"}, "read:messages"))
}

func TestHasAllScopes(t *testing.T) {
	g := []string{"read:messages", "write:*"}
	assert.True(t, HasAllScopes(g, []string{"read:messages", "write:channels"}))
	assert.False(t, HasAllScopes(g, []string{"admin:apps"}))
}

func TestExpand_ClosedAndFinite(t *testing.T) {
	expanded := Expand([]string{"admin:*"})
	assert.ElementsMatch(t, []string{"admin:channels", "admin:apps", "admin:users", "admin:moderation"}, expanded)
}

func TestIsSubsetOfExpanded(t *testing.T) {
	manifestScopes := []string{"read:messages", "write:messages"}
	assert.True(t, IsSubsetOfExpanded([]string{"read:messages"}, manifestScopes))
	assert.False(t, IsSubsetOfExpanded([]string{"admin:apps"}, manifestScopes))
}

func TestAllKnown(t *testing.T) {
	assert.True(t, AllKnown([]string{"read:messages", "admin:*"}))
	assert.False(t, AllKnown([]string{"bogus:thing"}))
	assert.False(t, AllKnown([]string{"bogus:*"}))
}
