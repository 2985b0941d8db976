package accounts

import "github.com/alexedwards/argon2id"

// Hasher derives and checks argon2id password hashes.
type Hasher struct {
	Params *argon2id.Params
}

// Hash returns an encoded argon2id hash of password.
func (h Hasher) Hash(password string) (string, error) {
	params := h.Params
	if params == nil {
		params = argon2id.DefaultParams
	}
	return argon2id.CreateHash(password, params)
}

// Compare reports whether password matches the encoded hash. A malformed hash never matches.
func (h Hasher) Compare(password, hash string) bool {
	ok, err := argon2id.ComparePasswordAndHash(password, hash)
	return err == nil && ok
}
