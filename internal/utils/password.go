package utils

import "golang.org/x/crypto/bcrypt"

// HashCredential derives the bcrypt hash stored for an account.  A cost
// below the bcrypt minimum (unset or bad BCRYPT_COST) falls back to the
// library default rather than weakening the hash.
func HashCredential(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckCredential reports whether plain matches the stored hash.
func CheckCredential(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
