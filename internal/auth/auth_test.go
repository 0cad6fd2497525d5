package auth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSaltIsTwoAlphabetChars(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	require.Len(t, salt, 2)
	for _, c := range salt {
		require.True(t, strings.ContainsRune(saltAlphabet, c))
	}
}

func TestNilAuthenticatorAcceptsUnconditionally(t *testing.T) {
	var a *Authenticator
	require.NoError(t, a.Authenticate("anyone", "anything"))
}

func writePwdFile(t *testing.T, lines ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pwd")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600))
	return path
}

func TestPlainModeAcceptsMatchingPassword(t *testing.T) {
	path := writePwdFile(t, "alice pw1", "bob pw2")
	a, err := Load(path, ModePlain, "")
	require.NoError(t, err)
	require.NoError(t, a.Authenticate("alice", "pw1"))
}

func TestPlainModeRejectsWrongPassword(t *testing.T) {
	path := writePwdFile(t, "alice pw1")
	a, err := Load(path, ModePlain, "")
	require.NoError(t, err)
	require.ErrorIs(t, a.Authenticate("alice", "wrong"), ErrWrongPassword)
}

func TestUnknownLoginIsRejected(t *testing.T) {
	path := writePwdFile(t, "alice pw1")
	a, err := Load(path, ModePlain, "")
	require.NoError(t, err)
	require.ErrorIs(t, a.Authenticate("mallory", "pw1"), ErrNoSuchLogin)
}

func TestHashedModeAcceptsMatchingHash(t *testing.T) {
	// The password file stores the plaintext password; the client sends
	// crypt(password, salt) computed against the server's challenge
	// salt, and the server recomputes the same thing to compare (spec
	// §4.4 rule 3b).
	salt := ".."
	path := writePwdFile(t, "alice pw1")
	a, err := Load(path, ModeHashed, salt)
	require.NoError(t, err)
	require.NoError(t, a.Authenticate("alice", Crypt("pw1", salt)))
}

func TestCryptIsDeterministicAndSaltSensitive(t *testing.T) {
	require.Equal(t, Crypt("secret", "ab"), Crypt("secret", "ab"))
	require.NotEqual(t, Crypt("secret", "ab"), Crypt("secret", "cd"))
	require.NotEqual(t, Crypt("secret", "ab"), Crypt("other", "ab"))
}

func TestCryptOutputIsSaltPrefixedAlphabetString(t *testing.T) {
	h := Crypt("secret", "xy")
	require.True(t, strings.HasPrefix(h, "xy"))
	require.Len(t, h, 2+11)
	for _, c := range h {
		require.True(t, strings.ContainsRune(saltAlphabet, c))
	}
}
