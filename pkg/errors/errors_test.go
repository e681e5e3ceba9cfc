package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		fatal     bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeFloorPriceViolation, status: http.StatusUnprocessableEntity, detailsOK: true},
		{code: CodeApprovalDenied, status: http.StatusForbidden, detailsOK: true},
		{code: CodeInvalidQuantity, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeOverReturnQuantity, status: http.StatusUnprocessableEntity, detailsOK: true},
		{code: CodePaymentDeclined, status: http.StatusPaymentRequired, detailsOK: true},
		{code: CodePaymentError, status: http.StatusBadGateway, retryable: true, detailsOK: true},
		{code: CodeInconsistentTotals, status: http.StatusInternalServerError, fatal: true},
		{code: CodeCancelled, status: http.StatusConflict, detailsOK: true},
		{code: CodeSessionBusy, status: http.StatusConflict, retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.Fatal != tt.fatal {
			t.Fatalf("code %s expected fatal %v got %v", tt.code, tt.fatal, meta.Fatal)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	base.WithDetails(map[string]any{"field": "foo"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodePaymentError, cause, "terminal")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodePaymentError {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestClassificationHelpers(t *testing.T) {
	wrapped := fmt.Errorf("apply payment: %w", New(CodePaymentError, "timeout"))
	if !IsRetryable(wrapped) {
		t.Fatalf("payment error should be retryable")
	}
	if IsRetryable(New(CodePaymentDeclined, "insufficient funds")) {
		t.Fatalf("decline must not be retryable")
	}
	if !IsFatal(New(CodeInconsistentTotals, "subtotal drift")) {
		t.Fatalf("inconsistent totals must be fatal")
	}
	if IsFatal(stdErrors.New("plain")) {
		t.Fatalf("untyped errors are not fatal")
	}
	if !HasCode(wrapped, CodePaymentError) {
		t.Fatalf("HasCode should walk the chain")
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeApprovalDenied, "manager declined")
	if got := As(err); got == nil || got.Code() != CodeApprovalDenied {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestDumpCarriesClassification(t *testing.T) {
	err := fmt.Errorf("apply payment: %w", Wrap(CodePaymentError, stdErrors.New("socket closed"), "terminal").
		WithDetails(map[string]any{"tender": "credit"}))

	d := Dump(err)
	if d.Code != CodePaymentError || !d.Retryable || d.Fatal {
		t.Fatalf("unexpected classification %+v", d)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %v", d.Chain)
	}

	fields := d.Fields()
	if fields["error_code"] != CodePaymentError {
		t.Fatalf("missing error_code in %v", fields)
	}
	if _, ok := fields["pg_code"]; ok {
		t.Fatalf("empty pg fields should be omitted: %v", fields)
	}
	if Dump(nil).TopMessage != "" {
		t.Fatalf("nil error should dump empty")
	}
}

func TestHasCodeFindsInnerCode(t *testing.T) {
	inner := New(CodePaymentDeclined, "insufficient funds")
	outer := Wrap(CodeInternal, fmt.Errorf("tender: %w", inner), "apply payment")
	if !HasCode(outer, CodePaymentDeclined) || !HasCode(outer, CodeInternal) {
		t.Fatalf("HasCode should match every code in the chain")
	}
	if HasCode(outer, CodeNotFound) {
		t.Fatalf("unexpected match for absent code")
	}
	if !stdErrors.Is(outer, New(CodePaymentDeclined, "")) {
		t.Fatalf("errors.Is should match by code")
	}
	if Classify(outer).HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("Classify should use the outermost code")
	}
}

func TestNewfFormats(t *testing.T) {
	if got := Newf(CodeInvalidQuantity, "quantity %d above %d", 120, 99).Message(); got != "quantity 120 above 99" {
		t.Fatalf("unexpected message %q", got)
	}
}
