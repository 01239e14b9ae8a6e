package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "linkage/pkg/domain-errors"
)

var baseTime = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func TestNewContact_Invariants(t *testing.T) {
	t.Run("primary requires an identifier", func(t *testing.T) {
		_, err := NewPrimaryContact("", "", baseTime)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("primary has no link", func(t *testing.T) {
		c, err := NewPrimaryContact("a@x.io", "", baseTime)
		require.NoError(t, err)
		assert.True(t, c.IsRoot())
		assert.Nil(t, c.LinkedID)
	})

	t.Run("secondary requires a primary", func(t *testing.T) {
		_, err := NewSecondaryContact("a@x.io", "1", 0, baseTime)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("secondary links to its primary", func(t *testing.T) {
		c, err := NewSecondaryContact("", "1", 7, baseTime)
		require.NoError(t, err)
		assert.True(t, c.IsLinkedTo(7))
		assert.False(t, c.IsPrimary())
	})
}

func TestLinkPrecedence_Transitions(t *testing.T) {
	assert.True(t, LinkPrecedencePrimary.CanTransitionTo(LinkPrecedenceSecondary))
	assert.True(t, LinkPrecedenceSecondary.CanTransitionTo(LinkPrecedencePrimary))
	assert.False(t, LinkPrecedencePrimary.CanTransitionTo(LinkPrecedencePrimary))
	assert.False(t, LinkPrecedenceSecondary.CanTransitionTo(LinkPrecedenceSecondary))
	assert.False(t, LinkPrecedence("tertiary").CanTransitionTo(LinkPrecedencePrimary))
}

func TestContact_LinkTo(t *testing.T) {
	later := baseTime.Add(time.Minute)

	t.Run("demotes a primary", func(t *testing.T) {
		c := &Contact{ID: 2, Email: "b@x.io", LinkPrecedence: LinkPrecedencePrimary, CreatedAt: baseTime}
		require.NoError(t, c.LinkTo(1, later))
		assert.True(t, c.IsLinkedTo(1))
		assert.Equal(t, later, c.UpdatedAt)
		assert.Equal(t, baseTime, c.CreatedAt)
	})

	t.Run("re-targets a secondary", func(t *testing.T) {
		old := ContactID(5)
		c := &Contact{ID: 3, PhoneNumber: "9", LinkPrecedence: LinkPrecedenceSecondary, LinkedID: &old}
		require.NoError(t, c.LinkTo(1, later))
		assert.True(t, c.IsLinkedTo(1))
		assert.Equal(t, ContactID(5), old, "previous pointer must not be mutated in place")
	})

	t.Run("rejects self link", func(t *testing.T) {
		c := &Contact{ID: 4, LinkPrecedence: LinkPrecedencePrimary}
		err := c.LinkTo(4, later)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		assert.True(t, c.IsPrimary())
	})

	t.Run("rejects unknown precedence", func(t *testing.T) {
		c := &Contact{ID: 4, LinkPrecedence: "unknown"}
		require.Error(t, c.LinkTo(1, later))
	})

	t.Run("never touches identifiers", func(t *testing.T) {
		c := &Contact{ID: 2, Email: "b@x.io", PhoneNumber: "2", LinkPrecedence: LinkPrecedencePrimary}
		require.NoError(t, c.LinkTo(1, later))
		assert.Equal(t, "b@x.io", c.Email)
		assert.Equal(t, "2", c.PhoneNumber)
	})
}

func TestContact_Promote(t *testing.T) {
	later := baseTime.Add(time.Minute)

	t.Run("promotes a secondary", func(t *testing.T) {
		primary := ContactID(1)
		c := &Contact{ID: 2, LinkPrecedence: LinkPrecedenceSecondary, LinkedID: &primary}
		require.NoError(t, c.Promote(later))
		assert.True(t, c.IsRoot())
	})

	t.Run("clears a stale link on a primary", func(t *testing.T) {
		stale := ContactID(9)
		c := &Contact{ID: 2, LinkPrecedence: LinkPrecedencePrimary, LinkedID: &stale}
		require.NoError(t, c.Promote(later))
		assert.True(t, c.IsRoot())
	})

	t.Run("rejects an existing root", func(t *testing.T) {
		c := &Contact{ID: 2, LinkPrecedence: LinkPrecedencePrimary}
		err := c.Promote(later)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestContact_Before(t *testing.T) {
	older := &Contact{ID: 9, CreatedAt: baseTime}
	newer := &Contact{ID: 1, CreatedAt: baseTime.Add(time.Second)}
	assert.True(t, older.Before(newer))
	assert.False(t, newer.Before(older))

	tieLow := &Contact{ID: 3, CreatedAt: baseTime}
	tieHigh := &Contact{ID: 4, CreatedAt: baseTime}
	assert.True(t, tieLow.Before(tieHigh))
	assert.False(t, tieHigh.Before(tieLow))
}

func TestContact_Clone(t *testing.T) {
	linked := ContactID(1)
	c := &Contact{ID: 2, LinkedID: &linked, LinkPrecedence: LinkPrecedenceSecondary}
	cp := c.Clone()
	*cp.LinkedID = 5
	assert.Equal(t, ContactID(1), *c.LinkedID)
}
