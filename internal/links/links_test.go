package links

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_RoundTrip(t *testing.T) {
	s := NewSigner("secret", time.Hour)
	tok, err := s.Sign("conv-1")
	require.NoError(t, err)

	id, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "conv-1", id)
}

func TestSigner_WrongSecret(t *testing.T) {
	tok, err := NewSigner("secret-A", time.Hour).Sign("conv-1")
	require.NoError(t, err)

	_, err = NewSigner("secret-B", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSigner_Expired(t *testing.T) {
	s := NewSigner("secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	s.now = func() time.Time { return issued }
	tok, err := s.Sign("conv-1")
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSigner_Garbage(t *testing.T) {
	_, err := NewSigner("secret", time.Hour).Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSigner_AudioPath(t *testing.T) {
	s := NewSigner("secret", time.Hour)
	p, err := s.AudioPath("abc")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, "/api/conversions/abc/audio?token="))

	id, err := s.Verify(strings.TrimPrefix(p, "/api/conversions/abc/audio?token="))
	require.NoError(t, err)
	assert.Equal(t, "abc", id)
}
