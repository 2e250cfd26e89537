package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestGetKindFindsWrappedError(t *testing.T) {
	base := NotFound("email template not found").WithOp("template.FindByID")
	wrapped := fmt.Errorf("send email: %w", base)

	if got := GetKind(wrapped); got != KindNotFound {
		t.Fatalf("expected KindNotFound, got %v", got)
	}
	if !Is(wrapped, KindNotFound) {
		t.Fatal("expected Is to match through wrapping")
	}
	if GetKind(errors.New("plain")) != KindUnknown {
		t.Fatal("expected plain errors to be KindUnknown")
	}
}

func TestErrorMessageIncludesOpAndCause(t *testing.T) {
	err := Infrastructure("insert email", errors.New("connection reset")).WithOp("email.Create")
	want := "email.Create: insert email: connection reset"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:     http.StatusBadRequest,
		KindNotFound:       http.StatusNotFound,
		KindInvalidState:   http.StatusConflict,
		KindInfrastructure: http.StatusBadGateway,
		KindInternal:       http.StatusInternalServerError,
	}
	for kind, status := range cases {
		if got := New(kind, "x").HTTPStatus(); got != status {
			t.Errorf("%s: expected %d, got %d", kind, status, got)
		}
	}
}
