package tarantool

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
)

const scrambleSize = sha1.Size

// Auth selects an authentication method, see NetDialer.Auth.
type Auth int

const (
	// AutoAuth lets the dialer pick a method: chap-sha1 unless the server
	// asks for something else.
	AutoAuth Auth = iota
	// ChapSha1Auth is the default Tarantool method.
	ChapSha1Auth
	// PapSha256Auth sends the password itself, so it is only allowed over
	// the "ssl" transport.
	PapSha256Auth
)

var authNames = map[Auth]string{
	AutoAuth:      "auto",
	ChapSha1Auth:  "chap-sha1",
	PapSha256Auth: "pap-sha256",
}

// String returns the method name as the server knows it.
func (a Auth) String() string {
	if name, ok := authNames[a]; ok {
		return name
	}
	return fmt.Sprintf("unknown auth type (code %d)", a)
}

// scramble computes the chap-sha1 proof:
//
//	scramble = sha1(password) xor sha1(salt[:20], sha1(sha1(password)))
func scramble(encodedSalt, pass string) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(encodedSalt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	if len(salt) < scrambleSize {
		return nil, fmt.Errorf("salt is too short: %d bytes", len(salt))
	}

	hashedPass := sha1.Sum([]byte(pass))
	doubleHashed := sha1.Sum(hashedPass[:])

	h := sha1.New()
	h.Write(salt[:scrambleSize])
	h.Write(doubleHashed[:])
	proof := h.Sum(nil)

	for i := range proof {
		proof[i] ^= hashedPass[i]
	}
	return proof, nil
}
