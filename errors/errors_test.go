package errors

import (
	"errors"
	"testing"
)

func TestIsCategoryAndRetryable(t *testing.T) {
	err := Transient("source.read", ErrStorageUnavailable)
	if !IsCategory(err, CategoryTransient) {
		t.Error("expected CategoryTransient")
	}
	if !IsRetryable(err) {
		t.Error("Transient errors must be retryable")
	}

	nf := NotFound("deliver.probe")
	if IsRetryable(nf) {
		t.Error("NotFound errors must not be retryable")
	}
	if !IsCategory(nf, CategoryNotFound) {
		t.Error("expected CategoryNotFound")
	}
}

func TestWrapNilIsNil(t *testing.T) {
	if err := Wrap(CategoryDecode, "op", nil); err != nil {
		t.Errorf("Wrap(nil) should return nil, got %v", err)
	}
}

func TestUnwrapReachesSentinel(t *testing.T) {
	wrapped := Wrap(CategoryStorage, "s3.open", ErrStorageUnavailable)
	if !errors.Is(wrapped, ErrStorageUnavailable) {
		t.Error("errors.Is must see through ProcessingError to the wrapped sentinel")
	}
}

func TestIsRetryableFalseForPlainError(t *testing.T) {
	if IsRetryable(errors.New("boom")) {
		t.Error("a plain error is never retryable")
	}
}

func TestIsCategoryFalseForPlainError(t *testing.T) {
	if IsCategory(errors.New("boom"), CategoryDecode) {
		t.Error("a plain error has no category")
	}
}
