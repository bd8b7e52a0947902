package auth

import "golang.org/x/crypto/bcrypt"

// bcryptCost is the fixed work factor for password hashing.
const bcryptCost = 12

// dummyHash is compared against when no stored hash exists, so that
// verification for an unknown email burns the same bcrypt work as a real
// comparison. Without it, response latency would reveal whether an email is
// registered.
var dummyHash []byte

func init() {
	h, err := bcrypt.GenerateFromPassword([]byte("learnstack timing equalizer"), bcryptCost)
	if err != nil {
		panic(err)
	}
	dummyHash = h
}

// HashPassword hashes a password with bcrypt. Each call salts independently,
// so hashing the same password twice yields different strings.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored hash. An empty
// hash (user not found) still runs a full comparison against dummyHash before
// returning false. A malformed hash is simply a mismatch, never an error.
func VerifyPassword(password, hash string) bool {
	if hash == "" {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
