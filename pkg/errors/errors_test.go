package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := Wrap(CodeDependency, cause, "publish event")

	if !stdErrors.Is(err, cause) {
		t.Fatal("wrapped cause lost from chain")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code: %s", err.Code())
	}
	if err.Error() != "publish event: connection refused" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestAsFindsTypedErrorThroughWrapping(t *testing.T) {
	inner := New(CodeConflict, "email already registered")
	outer := fmt.Errorf("register: %w", inner)

	typed := As(outer)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeConflict {
		t.Fatalf("unexpected code: %s", typed.Code())
	}
	if !Is(outer, CodeConflict) {
		t.Fatal("Is should match code through chain")
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor(Code("BOGUS"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", meta.HTTPStatus)
	}
}

func TestMetadataStatuses(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:   http.StatusBadRequest,
		CodeUnauthorized: http.StatusUnauthorized,
		CodeNotFound:     http.StatusNotFound,
		CodeConflict:     http.StatusConflict,
		CodeInternal:     http.StatusInternalServerError,
		CodeDependency:   http.StatusServiceUnavailable,
	}
	for code, want := range cases {
		if got := MetadataFor(code).HTTPStatus; got != want {
			t.Fatalf("code %s: expected %d got %d", code, want, got)
		}
	}
}
