package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
)

type tenderBody struct {
	Kind   string          `json:"kind" validate:"required,oneof=cash credit"`
	Amount decimal.Decimal `json:"amount" validate:"gt=0,cents"`
}

func decode(t *testing.T, body string) (tenderBody, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dest tenderBody
	err := DecodeJSONBody(httptest.NewRecorder(), req, &dest)
	return dest, err
}

func TestDecodeJSONBodyAcceptsDecimalAmount(t *testing.T) {
	got, err := decode(t, `{"kind":"cash","amount":"12.50"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Amount.Equal(decimal.RequireFromString("12.50")) {
		t.Fatalf("expected 12.50, got %s", got.Amount)
	}
}

func TestDecodeJSONBodyValidatesDecimalAmount(t *testing.T) {
	_, err := decode(t, `{"kind":"cash","amount":"0"}`)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, _ := typed.Details().(map[string]string)
	if details["amount"] != "must be greater than 0" {
		t.Fatalf("unexpected details %v", typed.Details())
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	_, err := decode(t, `{"kind":"cash","amount":"1","tip":"2"}`)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyReportsOneOf(t *testing.T) {
	_, err := decode(t, `{"kind":"bitcoin","amount":"1"}`)
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error")
	}
	details, _ := typed.Details().(map[string]string)
	if details["kind"] != "must be one of [cash credit]" {
		t.Fatalf("unexpected details %v", typed.Details())
	}
}

func TestDecodeJSONBodyRejectsSubCentAmount(t *testing.T) {
	_, err := decode(t, `{"kind":"cash","amount":"1.005"}`)
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	details, _ := typed.Details().(map[string]string)
	if details["amount"] != "must not have more than two decimal places" {
		t.Fatalf("unexpected details %v", typed.Details())
	}
}

func TestDecodeJSONBodyFramingErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{name: "empty", body: "", msg: "request body is required"},
		{name: "trailing object", body: `{"kind":"cash","amount":"1"}{"kind":"cash","amount":"1"}`, msg: "request body must contain a single JSON object"},
		{name: "too large", body: `{"kind":"` + strings.Repeat("c", maxBodyBytes) + `"}`, msg: "request body too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decode(t, tt.body)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if typed.Message() != tt.msg {
				t.Fatalf("expected %q, got %q", tt.msg, typed.Message())
			}
		})
	}
}
