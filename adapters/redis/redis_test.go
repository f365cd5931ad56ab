package redis

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/lborres/bantay/adapters/adaptertest"
	"github.com/lborres/bantay/core"
)

// testClient connects to BANTAY_TEST_REDIS_URL or skips the test.
func testClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("BANTAY_TEST_REDIS_URL")
	if url == "" {
		t.Skip("BANTAY_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("redis.ParseURL() error = %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	return client
}

func TestAdapter_Conformance(t *testing.T) {
	client := testClient(t)
	adaptertest.Run(t, func(t *testing.T) core.Adapter {
		if err := client.FlushDB(context.Background()).Err(); err != nil {
			t.Fatalf("FlushDB() error = %v", err)
		}
		return New(client, WithPrefix("bantay-test:"))
	})
}

// Requirement: every key lives under the configured prefix.
func TestAdapter_Keys(t *testing.T) {
	a := New(nil, WithPrefix("app:"))

	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "user", got: a.userKey("u1"), want: "app:user:u1"},
		{name: "email", got: a.emailKey("a@example.com"), want: "app:user:email:a@example.com"},
		{name: "account", got: a.accountKey("github", "42"), want: "app:account:github:42"},
		{name: "session", got: a.sessionKey("tok"), want: "app:session:tok"},
		{name: "verification", got: a.verificationKey("a@example.com", "h"), want: "app:verification:a@example.com:h"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			if test.got != test.want {
				t.Errorf("key = %q, want %q", test.got, test.want)
			}
		})
	}
}

func TestNew_DefaultPrefix(t *testing.T) {
	if got := New(nil).userKey("u1"); got != "bantay:user:u1" {
		t.Errorf("userKey() = %q", got)
	}
}
