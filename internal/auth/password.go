package auth

import "golang.org/x/crypto/bcrypt"

// BcryptHasher hashes secrets with bcrypt. The zero value uses bcrypt.DefaultCost.
type BcryptHasher struct {
	Cost int
}

// Hash returns the bcrypt hash of password.
func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare reports whether password matches hash.
func (h BcryptHasher) Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// HashPassword hashes with the default cost.
func HashPassword(password string) (string, error) {
	return BcryptHasher{}.Hash(password)
}

// CheckPassword compares a bcrypt hash against a plain password.
func CheckPassword(hash, password string) bool {
	return BcryptHasher{}.Compare(hash, password)
}
