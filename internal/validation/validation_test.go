package validation

import (
	"testing"
)

func TestCheckoutRequest_Valid(t *testing.T) {
	v := New()

	req := CheckoutRequest{
		Items: []Item{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
	}

	if err := v.Struct(req); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
}

func TestCheckoutRequest_EmptyItems(t *testing.T) {
	v := New()

	req := CheckoutRequest{Items: []Item{}}

	if err := v.Struct(req); err == nil {
		t.Fatal("expected validation error for empty items, got nil")
	}
}

func TestCheckoutRequest_DuplicateProductIDs(t *testing.T) {
	v := New()

	req := CheckoutRequest{
		Items: []Item{
			{ProductID: 5, Quantity: 1},
			{ProductID: 5, Quantity: 3},
		},
	}

	if err := v.Struct(req); err == nil {
		t.Fatal("expected validation error for duplicate product ids, got nil")
	}
}

func TestCheckoutRequest_NonPositiveQuantity(t *testing.T) {
	v := New()

	req := CheckoutRequest{
		Items: []Item{
			{ProductID: 1, Quantity: 0},
		},
	}

	if err := v.Struct(req); err == nil {
		t.Fatal("expected validation error for zero quantity, got nil")
	}
}

func TestCalculateCartRequest_EmptyItemsAllowed(t *testing.T) {
	v := New()

	req := CalculateCartRequest{Items: []Item{}}

	if err := v.Struct(req); err != nil {
		t.Fatalf("expected empty cart to be valid for quoting, got: %v", err)
	}
}

func TestCalculateCartRequest_DuplicateProductIDs(t *testing.T) {
	v := New()

	req := CalculateCartRequest{
		Items: []Item{
			{ProductID: 9, Quantity: 1},
			{ProductID: 9, Quantity: 1},
		},
	}

	if err := v.Struct(req); err == nil {
		t.Fatal("expected validation error for duplicate product ids, got nil")
	}
}
