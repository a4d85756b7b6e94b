package ammerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := Validation("parse", "bad amount %q", "1.2.3")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation kind")
	}
	if errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("unexpected insufficient liquidity match")
	}

	wrapped := fmt.Errorf("quote: %w", err)
	if !errors.Is(wrapped, ErrValidation) {
		t.Fatalf("expected wrapped validation kind")
	}
	if KindOf(wrapped) != KindValidation {
		t.Fatalf("kind mismatch: %s", KindOf(wrapped))
	}
}

func TestKindOfForeignError(t *testing.T) {
	if KindOf(errors.New("boom")) != KindUnknown {
		t.Fatalf("expected unknown kind")
	}
}

func TestPairNotFoundDetails(t *testing.T) {
	err := PairNotFound("hops", "A", "B")
	if err.Details["token_a"] != "A" || err.Details["token_b"] != "B" {
		t.Fatalf("details mismatch: %+v", err.Details)
	}
	want := "hops: pair_not_found: no pool for pair (token_a=A, token_b=B)"
	if err.Error() != want {
		t.Fatalf("message mismatch: %q != %q", err.Error(), want)
	}
}

func TestWithDoesNotMutate(t *testing.T) {
	base := Overflow("mul", "a*b overflows")
	_ = base.With("a", "1")
	if len(base.Details) != 0 {
		t.Fatalf("With mutated receiver: %+v", base.Details)
	}
}
