package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func TestVerify_RoundTrip(t *testing.T) {
	token, err := Issue(testSecret, "authenticated", Actor{ID: "user-1", Email: "a@example.com"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	actor, err := NewVerifier(testSecret, "authenticated").Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if actor.ID != "user-1" || actor.Email != "a@example.com" {
		t.Errorf("actor = %+v", actor)
	}
}

func TestVerify_Rejects(t *testing.T) {
	valid, _ := Issue(testSecret, "authenticated", Actor{ID: "user-1"}, time.Hour)
	expired, _ := Issue(testSecret, "authenticated", Actor{ID: "user-1"}, -time.Minute)
	otherAud, _ := Issue(testSecret, "service_role", Actor{ID: "user-1"}, time.Hour)
	noSub, _ := Issue(testSecret, "authenticated", Actor{}, time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name     string
		secret   string
		audience string
		token    string
	}{
		{"wrong secret", "other", "authenticated", valid},
		{"expired", testSecret, "authenticated", expired},
		{"wrong audience", testSecret, "authenticated", otherAud},
		{"no subject", testSecret, "authenticated", noSub},
		{"alg none", testSecret, "", none},
		{"garbage", testSecret, "", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewVerifier(tt.secret, tt.audience).Verify(tt.token)
			if !errors.Is(err, ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
		})
	}
}

func TestVerify_NoAudienceCheck(t *testing.T) {
	token, _ := Issue(testSecret, "service_role", Actor{ID: "user-1"}, time.Hour)
	if _, err := NewVerifier(testSecret, "").Verify(token); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestActorContext(t *testing.T) {
	if _, ok := ActorFrom(context.Background()); ok {
		t.Fatal("empty context carries an actor")
	}
	ctx := WithActor(context.Background(), Actor{ID: "u"})
	a, ok := ActorFrom(ctx)
	if !ok || a.ID != "u" {
		t.Errorf("ActorFrom = %+v, %v", a, ok)
	}
}
