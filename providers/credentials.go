package providers

import (
	"context"
	"strings"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/crypto"
)

// Credentials returns a username and password provider backed by authorize.
func Credentials(authorize core.AuthorizeFunc) *core.CredentialsProvider {
	return &core.CredentialsProvider{
		ID:   "credentials",
		Name: "Credentials",
		Credentials: map[string]core.CredentialInput{
			"username": {Label: "Username", Type: "text"},
			"password": {Label: "Password", Type: "password"},
		},
		Authorize: authorize,
	}
}

// UserLookup finds a user and their stored password hash by username. It
// returns a nil user when nobody matches.
type UserLookup func(ctx context.Context, username string) (user *core.User, passwordHash string, err error)

// PasswordAuthorizer checks the submitted password against the Argon2id
// hash lookup returns.
func PasswordAuthorizer(lookup UserLookup) core.AuthorizeFunc {
	hasher := crypto.NewArgon2()
	return func(ctx context.Context, credentials map[string]string, _ *core.Request) (*core.User, error) {
		username := strings.TrimSpace(credentials["username"])
		password := credentials["password"]
		if username == "" || password == "" {
			return nil, nil
		}

		user, hash, err := lookup(ctx, username)
		if err != nil || user == nil {
			return nil, err
		}
		ok, err := hasher.Verify(password, hash)
		if err != nil || !ok {
			return nil, err
		}
		return user, nil
	}
}
