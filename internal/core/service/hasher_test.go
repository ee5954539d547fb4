package service

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/worldlaptopcare/auth-service/internal/core/domain"
)

func TestBcryptHasher_Roundtrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost, nil)

	hash, err := h.Hash(context.Background(), "Secret1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "Secret1" {
		t.Fatalf("hash equals plaintext")
	}

	ok, err := h.Verify(context.Background(), "Secret1", hash)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected correct password to verify")
	}

	ok, err = h.Verify(context.Background(), "Secret2", hash)
	if err != nil {
		t.Fatalf("verify mismatch: %v", err)
	}
	if ok {
		t.Fatalf("expected wrong password to fail verification")
	}
}

func TestBcryptHasher_DistinctSalts(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost, nil)

	first, err := h.Hash(context.Background(), "same-password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := h.Hash(context.Background(), "same-password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first == second {
		t.Fatalf("expected salted hashes to differ")
	}
}

func TestBcryptHasher_EmptyPassword(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost, nil)

	if _, err := h.Hash(context.Background(), ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestBcryptHasher_MalformedStoredHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost, nil)

	ok, err := h.Verify(context.Background(), "whatever", "not-a-bcrypt-hash")
	if err == nil {
		t.Fatalf("expected error for malformed stored hash")
	}
	if ok {
		t.Fatalf("malformed hash must never verify")
	}
}

func TestBcryptHasher_OutOfRangeCostFallsBack(t *testing.T) {
	h := NewBcryptHasher(99, nil)

	hash, err := h.Hash(context.Background(), "pw12345678")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", cost)
	}
}
