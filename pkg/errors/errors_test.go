package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeAlreadyDecided, status: http.StatusConflict, detailsOK: true},
		{code: CodeBomNotFound, status: http.StatusNotFound, detailsOK: true},
		{code: CodeInsufficientMaterials, status: http.StatusUnprocessableEntity, detailsOK: true},
		{code: CodeInsufficientStock, status: http.StatusUnprocessableEntity, detailsOK: true},
		{code: CodeInvalidTransition, status: http.StatusUnprocessableEntity, detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
		if meta.PublicMessage == "" {
			t.Fatalf("code %s has no public message", tt.code)
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
	base := New(CodeBomNotFound, "product has no bom lines")
	if base.Code() != CodeBomNotFound {
		t.Fatalf("expected bom code, got %s", base.Code())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}
	base.WithDetails(map[string]any{"product_id": "p-1"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeInternal, cause, "load order")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if got := wrapped.Error(); got != "INTERNAL_ERROR: load order: boom" {
		t.Fatalf("unexpected error string %q", got)
	}

	formatted := Newf(CodeValidation, "quantity %d invalid", -1)
	if formatted.Message() != "quantity -1 invalid" {
		t.Fatalf("unexpected message %q", formatted.Message())
	}
}

func TestAsAndIsCodeFollowChain(t *testing.T) {
	err := fmt.Errorf("accept: %w", New(CodeAlreadyDecided, "order accepted"))
	if got := As(err); got == nil || got.Code() != CodeAlreadyDecided {
		t.Fatalf("As failed to return typed error")
	}
	if !IsCode(err, CodeAlreadyDecided) {
		t.Fatalf("expected IsCode to match")
	}
	if IsCode(err, CodeNotFound) {
		t.Fatalf("expected IsCode mismatch")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestDumpCapturesPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23514", ConstraintName: "materials_on_hand_non_negative", TableName: "materials"}
	err := Wrap(CodeInternal, pgErr, "debit material")

	d := Dump(err)
	if d.Code != CodeInternal {
		t.Fatalf("expected internal code, got %s", d.Code)
	}
	if d.PGCode != "23514" || d.PGConstraint != "materials_on_hand_non_negative" {
		t.Fatalf("unexpected pg fields %+v", d)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected chain of 2, got %d", len(d.Chain))
	}
	fields := d.Fields()
	if fields["pg_table"] != "materials" {
		t.Fatalf("expected pg_table field, got %v", fields["pg_table"])
	}
}
