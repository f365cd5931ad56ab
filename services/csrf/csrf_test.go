package csrf

import (
	"net/url"
	"testing"

	"github.com/lborres/bantay/core"
)

const secret = "0123456789abcdef0123456789abcdef"

// Requirement: a valid cookie is trusted and never re-minted across calls.
func TestCreateToken_Idempotent(t *testing.T) {
	// Arrange
	first, err := CreateToken(Params{Secret: secret})
	if err != nil {
		t.Fatalf("CreateToken() error = %v", err)
	}

	// Act
	for i := 0; i < 5; i++ {
		got, err := CreateToken(Params{CookieValue: first.CookieValue, Secret: secret})

		// Assert
		if err != nil {
			t.Fatalf("CreateToken() error = %v", err)
		}
		if got.Token != first.Token {
			t.Fatalf("call %d: token = %q, want %q", i, got.Token, first.Token)
		}
		if got.CookieValue != "" {
			t.Fatalf("call %d: re-minted cookie", i)
		}
	}
}

// Requirement: a POST is verified only when the body echoes the cookie token.
func TestCreateToken_Verification(t *testing.T) {
	valid, _ := CreateToken(Params{Secret: secret})

	tests := []struct {
		name         string
		params       Params
		wantVerified bool
		wantMint     bool
	}{
		{
			name:         "post with matching body",
			params:       Params{CookieValue: valid.CookieValue, IsPost: true, BodyValue: valid.Token, Secret: secret},
			wantVerified: true,
		},
		{
			name:   "get with matching body",
			params: Params{CookieValue: valid.CookieValue, IsPost: false, BodyValue: valid.Token, Secret: secret},
		},
		{
			name:   "post with wrong body",
			params: Params{CookieValue: valid.CookieValue, IsPost: true, BodyValue: "nope", Secret: secret},
		},
		{
			name:   "post without body",
			params: Params{CookieValue: valid.CookieValue, IsPost: true, Secret: secret},
		},
		{
			name:     "tampered hash",
			params:   Params{CookieValue: valid.Token + "|deadbeef", IsPost: true, BodyValue: valid.Token, Secret: secret},
			wantMint: true,
		},
		{
			name:     "wrong secret",
			params:   Params{CookieValue: valid.CookieValue, IsPost: true, BodyValue: valid.Token, Secret: secret + "x"},
			wantMint: true,
		},
		{
			name:     "no separator",
			params:   Params{CookieValue: valid.Token, IsPost: true, BodyValue: valid.Token, Secret: secret},
			wantMint: true,
		},
		{
			name:     "no cookie",
			params:   Params{IsPost: true, BodyValue: valid.Token, Secret: secret},
			wantMint: true,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Act
			got, err := CreateToken(test.params)

			// Assert
			if err != nil {
				t.Fatalf("CreateToken() error = %v", err)
			}
			if got.Verified != test.wantVerified {
				t.Errorf("Verified = %v, want %v", got.Verified, test.wantVerified)
			}
			if (got.CookieValue != "") != test.wantMint {
				t.Errorf("minted = %v, want %v", got.CookieValue != "", test.wantMint)
			}
			if test.wantMint && got.Token == valid.Token {
				t.Error("minted token should be fresh")
			}
		})
	}
}

func TestFromRequest_SetsCookieOnlyWhenMinted(t *testing.T) {
	// Arrange
	opts := &core.Options{Secret: secret, Cookies: core.DefaultCookies(true)}
	name := opts.Cookies.CSRFToken.Name

	// Act
	res, cookie, err := FromRequest(opts, &core.Request{Method: "GET", Body: url.Values{}})
	if err != nil {
		t.Fatalf("FromRequest() error = %v", err)
	}
	again, cookie2, err := FromRequest(opts, &core.Request{
		Method:  "POST",
		Cookies: map[string]string{name: cookie.Value},
		Body:    url.Values{"csrfToken": {res.Token}},
	})

	// Assert
	if err != nil {
		t.Fatalf("FromRequest() error = %v", err)
	}
	if cookie == nil || cookie.Name != "__Host-next-auth.csrf-token" {
		t.Fatalf("first cookie = %+v, want __Host- prefixed csrf cookie", cookie)
	}
	if cookie2 != nil {
		t.Errorf("second call set cookie %+v", cookie2)
	}
	if !again.Verified || again.Token != res.Token {
		t.Errorf("second call = %+v, want verified with same token", again)
	}
}

func TestStateFor_Deterministic(t *testing.T) {
	if StateFor("abc") != StateFor("abc") || StateFor("abc") == StateFor("abd") {
		t.Error("StateFor should be a deterministic function of the token")
	}
	if len(StateFor("abc")) != 64 {
		t.Errorf("len(StateFor) = %d, want 64", len(StateFor("abc")))
	}
}
