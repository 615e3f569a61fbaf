package utils

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter2", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "hunter2"))
	assert.False(t, VerifyPassword(hash, "hunter3"))

	_, err = HashPassword(strings.Repeat("x", 73), bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestSessionTokenRoundTrip(t *testing.T) {
	tok, err := NewSessionToken("secret", 42, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.SID)

	uid, sid, err := ParseSessionToken("secret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), uid)
	assert.Equal(t, tok.SID, sid)
}

func TestParseSessionTokenRejects(t *testing.T) {
	tok, err := NewSessionToken("secret", 7, time.Hour)
	require.NoError(t, err)

	_, _, err = ParseSessionToken("other-secret", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidSessionToken)

	expired, err := NewSessionToken("secret", 7, -time.Minute)
	require.NoError(t, err)
	_, _, err = ParseSessionToken("secret", expired.Token)
	assert.ErrorIs(t, err, ErrInvalidSessionToken)

	_, _, err = ParseSessionToken("secret", "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidSessionToken)
}

func TestHashSessionIDIsStable(t *testing.T) {
	assert.Equal(t, HashSessionID("abc"), HashSessionID("abc"))
	assert.Len(t, HashSessionID("abc"), 64)
	assert.NotEqual(t, HashSessionID("abc"), HashSessionID("abd"))
}

func TestUploadName(t *testing.T) {
	cases := map[string]string{
		"sword.png":            "sword.png",
		"../../etc/passwd":     "passwd",
		`C:\Users\me\coin.jpg`: "coin.jpg",
	}
	for in, want := range cases {
		got, err := UploadName(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"", "..", ".hidden", "/"} {
		_, err := UploadName(bad)
		assert.ErrorIs(t, err, ErrBadFilename, bad)
	}
}

func multipartFile(t *testing.T, field, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File[field][0]
}

func TestSaveUploadOverwritesSameName(t *testing.T) {
	dir := t.TempDir()

	name, err := SaveUpload(multipartFile(t, "image", "helmet.jpg", []byte("first")), dir)
	require.NoError(t, err)
	assert.Equal(t, "helmet.jpg", name)

	_, err = SaveUpload(multipartFile(t, "image", "helmet.jpg", []byte("second")), dir)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "helmet.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

type failingReader struct{ n int }

func (f *failingReader) Read(p []byte) (int, error) {
	if f.n > 0 {
		f.n--
		return copy(p, "partial"), nil
	}
	return 0, errors.New("connection reset")
}

func TestWriteFileAtomicLeavesNothingOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "medal.png")

	err := WriteFileAtomic(path, &failingReader{n: 2})
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
