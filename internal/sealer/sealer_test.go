package sealer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EmptyPassword(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestEncryptDecrypt(t *testing.T) {
	s, err := New("correct horse battery staple")
	require.NoError(t, err)

	iv, err := GenerateIV()
	require.NoError(t, err)
	assert.Len(t, iv, IVSize)

	plaintext := []byte(`{"github-token":"ghp_secret","tag":"ppp-2"}`)
	sealed, err := s.Encrypt(iv, plaintext)
	require.NoError(t, err)

	assert.Len(t, sealed.IV, IVSize*2)
	assert.NotContains(t, sealed.Data, "ghp_secret")

	opened, err := s.Decrypt(sealed)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(plaintext, opened))
}

func TestDecrypt_SamePasswordDifferentSealer(t *testing.T) {
	a, err := New("pw")
	require.NoError(t, err)
	b, err := New("pw")
	require.NoError(t, err)

	sealed, err := a.Seal([]byte("hello"))
	require.NoError(t, err)

	opened, err := b.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(opened))
}

func TestDecrypt_Failures(t *testing.T) {
	s, err := New("pw")
	require.NoError(t, err)
	other, err := New("other")
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("hello"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		sealer *Sealer
		sealed Sealed
	}{
		{name: "wrong password", sealer: other, sealed: sealed},
		{name: "bad iv hex", sealer: s, sealed: Sealed{IV: "zz", Data: sealed.Data}},
		{name: "short iv", sealer: s, sealed: Sealed{IV: "abcd", Data: sealed.Data}},
		{name: "bad base64", sealer: s, sealed: Sealed{IV: sealed.IV, Data: "!!"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.sealer.Decrypt(tt.sealed)
			assert.Error(t, err)
		})
	}
}

func TestEncrypt_RejectsBadIV(t *testing.T) {
	s, err := New("pw")
	require.NoError(t, err)

	_, err = s.Encrypt([]byte{1, 2, 3}, []byte("x"))
	assert.Error(t, err)
}

func TestSeal_FreshIVEachTime(t *testing.T) {
	s, err := New("pw")
	require.NoError(t, err)

	first, err := s.Seal([]byte("same"))
	require.NoError(t, err)
	second, err := s.Seal([]byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, first.IV, second.IV)
	assert.NotEqual(t, first.Data, second.Data)
}
