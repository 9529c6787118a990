package services

import (
	"context"
	"testing"

	"rag-document-platform/models"
)

func TestAnswerCacheNilIsDisabled(t *testing.T) {
	var ac *AnswerCache

	if ac.Enabled() {
		t.Error("nil cache reports enabled")
	}
	if _, ok := ac.Get(context.Background(), "q"); ok {
		t.Error("nil cache returned a hit")
	}
	// Set on a nil cache must not panic.
	ac.Set(context.Background(), "q", models.QueryResult{Answer: "a"})
}

func TestAnswerCacheZeroTTLDisabled(t *testing.T) {
	ac := NewAnswerCache(nil, 0)
	if ac.Enabled() {
		t.Error("cache with zero TTL reports enabled")
	}
}

func TestCacheKeyStable(t *testing.T) {
	a := cacheKey("What is the policy?")
	b := cacheKey("What is the policy?")
	c := cacheKey("what is the policy?")

	if a != b {
		t.Error("same question produced different keys")
	}
	if a == c {
		t.Error("case-differing questions collide")
	}
}
