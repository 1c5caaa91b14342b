package ingest

import (
	"fmt"

	"punchd/internal/model"
)

// FieldError reports one failed field check. It unwraps to
// model.ErrMalformedPayload so callers can branch on the taxonomy entry.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Reason)
}

func (e FieldError) Unwrap() error { return model.ErrMalformedPayload }

type fieldCheck func(ev model.RawPunchEvent) *FieldError

func required(field string, get func(model.RawPunchEvent) string) fieldCheck {
	return func(ev model.RawPunchEvent) *FieldError {
		if get(ev) == "" {
			return &FieldError{Field: field, Reason: "required"}
		}
		return nil
	}
}

var rawChecks = []fieldCheck{
	required("terminalSerial", func(ev model.RawPunchEvent) string { return ev.TerminalSerial }),
	required("data.pin", func(ev model.RawPunchEvent) string { return ev.Pin }),
	required("data.time", func(ev model.RawPunchEvent) string { return ev.Time }),
	required("data.status", func(ev model.RawPunchEvent) string { return ev.Status }),
	required("data.verify", func(ev model.RawPunchEvent) string { return ev.Verify }),
}

// ValidateRaw runs the field checks and returns the first failure.
func ValidateRaw(ev model.RawPunchEvent) error {
	for _, check := range rawChecks {
		if ferr := check(ev); ferr != nil {
			return ferr
		}
	}
	return nil
}
