// Package password hashes account passwords with Argon2id. Accounts carried
// over from the previous store still hold bcrypt hashes; those verify here
// and report that they should be rehashed.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

type params struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

var current = params{memory: 64 * 1024, time: 1, threads: 4, keyLen: 32}

const (
	saltLen      = 16
	argonPrefix  = "$argon2id$"
	argonVersion = "v=19"
)

var errMalformedHash = errors.New("malformed_password_hash")

// Hash returns an encoded Argon2id hash with a random salt.
func Hash(plain string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plain), salt, current.time, current.memory, current.threads, current.keyLen)
	return encode(current, salt, key), nil
}

// Verify reports whether plain matches encoded.
func Verify(plain, encoded string) bool {
	ok, _ := Check(plain, encoded)
	return ok
}

// Check verifies plain against encoded. rehash is true when the match was
// against a legacy or weaker hash that should be replaced with Hash(plain).
func Check(plain, encoded string) (ok bool, rehash bool) {
	if isBcrypt(encoded) {
		if bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plain)) != nil {
			return false, false
		}
		return true, true
	}

	p, salt, key, err := decode(encoded)
	if err != nil {
		return false, false
	}
	check := argon2.IDKey([]byte(plain), salt, p.time, p.memory, p.threads, uint32(len(key)))
	if subtle.ConstantTimeCompare(key, check) != 1 {
		return false, false
	}
	return true, p != current
}

func isBcrypt(encoded string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(encoded, prefix) {
			return true
		}
	}
	return false
}

func encode(p params, salt, key []byte) string {
	return fmt.Sprintf("%s%s$m=%d,t=%d,p=%d$%s$%s",
		argonPrefix, argonVersion, p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

func decode(encoded string) (params, []byte, []byte, error) {
	rest, ok := strings.CutPrefix(encoded, argonPrefix)
	if !ok {
		return params{}, nil, nil, errMalformedHash
	}
	parts := strings.Split(rest, "$")
	if len(parts) != 4 || parts[0] != argonVersion {
		return params{}, nil, nil, errMalformedHash
	}

	var p params
	if _, err := fmt.Sscanf(parts[1], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return params{}, nil, nil, errMalformedHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return params{}, nil, nil, errMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil || len(key) == 0 {
		return params{}, nil, nil, errMalformedHash
	}
	p.keyLen = uint32(len(key))
	return p, salt, key, nil
}
