// Package auth implements the challenge-response login mode described in
// spec §4.4: salt generation, password-file lookup, and the plain/hashed
// credential compare.
package auth

import (
	"bufio"
	"crypto/des"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// saltAlphabet is the 64-character set salts and traditional crypt hashes
// are drawn from (spec GLOSSARY "Salt").
const saltAlphabet = "./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Mode selects how a stored password is compared against a login attempt.
type Mode int

const (
	// ModePlain compares passwords byte-for-byte.
	ModePlain Mode = iota
	// ModeHashed compares crypt(storedPassword, salt) against the
	// supplied password.
	ModeHashed
)

// ErrNoSuchLogin is returned by Authenticate when the login does not
// appear in the password file.
var ErrNoSuchLogin = errors.New("auth: no such login")

// ErrWrongPassword is returned by Authenticate when the login exists but
// the password does not match.
var ErrWrongPassword = errors.New("auth: wrong password")

// NewSalt draws two random characters from saltAlphabet using
// crypto/rand, matching the teacher's use of crypto/rand.Read for
// OS-entropy-bound randomness (krypto.go).
func NewSalt() (string, error) {
	var raw [2]byte
	if _, err := io.ReadFull(rand.Reader, raw[:]); err != nil {
		return "", fmt.Errorf("auth: generate salt: %w", err)
	}
	return string([]byte{
		saltAlphabet[int(raw[0])%len(saltAlphabet)],
		saltAlphabet[int(raw[1])%len(saltAlphabet)],
	}), nil
}

// entry is one parsed line of a password file.
type entry struct {
	login    string
	password string
}

// Authenticator checks CMD_login attempts against a loaded password file.
// A nil *Authenticator (no pwdfile configured) accepts unconditionally,
// per spec §4.4 rule 1.
type Authenticator struct {
	mode    Mode
	salt    string
	entries []entry
}

// Load reads a password file (each line "login<WS>password") and returns
// an Authenticator that checks logins against it in the given mode using
// salt for hashed comparisons. An empty path returns a nil *Authenticator
// that accepts unconditionally.
func Load(path string, mode Mode, salt string) (*Authenticator, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("auth: open password file: %w", err)
	}
	defer f.Close()

	a := &Authenticator{mode: mode, salt: salt}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		a.entries = append(a.entries, entry{login: fields[0], password: fields[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("auth: read password file: %w", err)
	}
	return a, nil
}

// Authenticate checks login/password against the loaded entries, per
// spec §4.4 rules 2-3. A nil receiver always succeeds.
func (a *Authenticator) Authenticate(login, password string) error {
	if a == nil {
		return nil
	}
	for _, e := range a.entries {
		if e.login != login {
			continue
		}
		switch a.mode {
		case ModePlain:
			if subtle.ConstantTimeCompare([]byte(e.password), []byte(password)) == 1 {
				return nil
			}
		case ModeHashed:
			if subtle.ConstantTimeCompare([]byte(Crypt(e.password, a.salt)), []byte(password)) == 1 {
				return nil
			}
		}
		return ErrWrongPassword
	}
	return ErrNoSuchLogin
}

// Crypt is a traditional-Unix-crypt-style construction built on the
// standard library's crypto/des: it iterates DES encryption of a zeroed
// block under a key derived from the password, self-chaining the
// ciphertext across 25 rounds and XORing the salt bytes (plus the round
// number) into the block before each round, then renders the final block in
// the crypt alphabet. It is not bit-compatible with libc's crypt(3) (that
// would require reimplementing DES's E-table with salt-dependent bit
// selection, which crypto/des does not expose) — it is meant for the
// hashed mode of this server's own password files, not interop with
// externally generated crypt hashes. Deployments needing real crypt(3)
// interop should use plain mode.
func Crypt(password, salt string) string {
	key := deriveKey(password)
	block, err := des.NewCipher(key)
	if err != nil {
		// des.NewCipher only fails on a key of the wrong length, and
		// deriveKey always returns exactly 8 bytes.
		panic(err)
	}

	saltBytes := []byte(salt)
	buf := make([]byte, 8)
	out := make([]byte, 8)
	for round := 0; round < 25; round++ {
		for i := range buf {
			buf[i] ^= saltBytes[i%len(saltBytes)] + byte(round)
		}
		block.Encrypt(out, buf)
		copy(buf, out)
	}
	return salt + encodeCrypt(buf)
}

// deriveKey folds password into an 8-byte DES key, using only the low 7
// bits of each input byte the way traditional crypt does, and wrapping
// around for passwords shorter or longer than 8 characters.
func deriveKey(password string) []byte {
	key := make([]byte, 8)
	if len(password) == 0 {
		return key
	}
	for i := range key {
		key[i] = password[i%len(password)] & 0x7f
	}
	return key
}

// encodeCrypt renders an 8-byte (64-bit) block as 11 characters from
// saltAlphabet, 6 bits at a time, most-significant group first. 11*6 = 66
// bits, 2 more than the block holds; the 2 missing trailing bits read as
// zero.
func encodeCrypt(block []byte) string {
	out := make([]byte, 11)
	for i := 0; i < 11; i++ {
		out[i] = saltAlphabet[bitGroupAt(block, i*6)]
	}
	return string(out)
}

// bitGroupAt reads 6 bits from block starting at bit offset start (0 =
// most significant bit of block[0]), treating any bit past the end of
// block as 0.
func bitGroupAt(block []byte, start int) byte {
	var v byte
	for i := 0; i < 6; i++ {
		bitPos := start + i
		bytePos := bitPos / 8
		var bit byte
		if bytePos < len(block) {
			shift := 7 - uint(bitPos%8)
			bit = (block[bytePos] >> shift) & 1
		}
		v = v<<1 | bit
	}
	return v
}
