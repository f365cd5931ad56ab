// Package email implements the magic-link flow: mint a single-use token,
// store its hash, mail a callback link and redeem it exactly once.
package email

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/crypto"
)

const DefaultMaxAge = 24 * time.Hour

var (
	ErrInvalidIdentifier = errors.New("invalid email address")
	ErrNoAdapter         = errors.New("email sign-in requires an adapter")
	ErrNoSender          = errors.New("email provider has no sender")
)

// NormalizeIdentifier lower-cases and trims the address and keeps only the
// first domain of "user@a.com,b.com" style input.
func NormalizeIdentifier(identifier string) (string, error) {
	local, domain, ok := strings.Cut(strings.ToLower(strings.TrimSpace(identifier)), "@")
	if !ok || local == "" {
		return "", ErrInvalidIdentifier
	}
	domain, _, _ = strings.Cut(domain, ",")
	domain = strings.TrimSpace(domain)
	if domain == "" || strings.Contains(domain, "@") {
		return "", ErrInvalidIdentifier
	}
	return local + "@" + domain, nil
}

// Normalize applies the provider's normalizer, or NormalizeIdentifier.
func Normalize(p *core.EmailProvider, identifier string) (string, error) {
	if p.NormalizeIdentifier != nil {
		return p.NormalizeIdentifier(identifier)
	}
	return NormalizeIdentifier(identifier)
}

func maxAge(p *core.EmailProvider) time.Duration {
	if p.MaxAge > 0 {
		return p.MaxAge
	}
	return DefaultMaxAge
}

// SendVerificationRequest stores the hashed token and hands the link to the
// provider's sender. The token is persisted before the mail goes out so a
// fast click cannot outrun it.
func SendVerificationRequest(ctx context.Context, opts *core.Options, p *core.EmailProvider, identifier string) error {
	if opts.Adapter == nil {
		return ErrNoAdapter
	}
	if p.SendVerificationRequest == nil {
		return ErrNoSender
	}

	generate := p.GenerateVerificationToken
	if generate == nil {
		generate = func() (string, error) { return crypto.RandomHex(32) }
	}
	token, err := generate()
	if err != nil {
		return fmt.Errorf("generate verification token: %w", err)
	}

	expires := opts.NowTime().Add(maxAge(p))
	link := core.AppendQuery(opts.PublicProvider(p).CallbackURL, url.Values{
		"callbackUrl": {opts.CallbackURL},
		"token":       {token},
		"email":       {identifier},
	})

	if err := opts.Adapter.CreateVerificationToken(ctx, &core.VerificationToken{
		Identifier: identifier,
		Token:      crypto.HashToken(token, opts.Secret),
		Expires:    expires,
	}); err != nil {
		return err
	}

	return p.SendVerificationRequest(ctx, core.VerificationRequest{
		Identifier: identifier,
		URL:        link,
		Token:      token,
		Expires:    expires,
		Provider:   p,
	})
}

// Verify redeems token for identifier. The adapter deletes the record in
// the same step it reads it, so a second call always fails.
func Verify(ctx context.Context, opts *core.Options, identifier, token string) error {
	if token == "" || identifier == "" {
		return core.ErrVerification
	}
	if opts.Adapter == nil {
		return ErrNoAdapter
	}

	vt, err := opts.Adapter.UseVerificationToken(ctx, identifier, crypto.HashToken(token, opts.Secret))
	if err != nil {
		return err
	}
	if vt == nil || vt.Expires.Before(opts.NowTime()) {
		return core.ErrVerification
	}
	return nil
}

// VerifyRequestURL is the "check your email" route for provider p. The
// route itself forwards to a custom page when one is configured.
func VerifyRequestURL(opts *core.Options, p *core.EmailProvider) string {
	return opts.ActionURL(core.ActionVerifyRequest, url.Values{
		"provider": {p.ID},
		"type":     {string(core.ProviderTypeEmail)},
	})
}
