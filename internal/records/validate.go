package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-freight/internal/common"
)

// FieldError describes one rejected payload field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// serverOwned are keys the store or the pricing rule fills in. A client that
// echoes a fetched record back may send them; they are dropped, not rejected.
var serverOwned = []string{"_id", "created_at", "updated_at", "total"}

// decode parses body into the collection payload, validates it and returns
// the canonical document. Unknown fields and trailing data are rejected.
func decode(v *validator.Validate, c Collection, body []byte) (Record, error) {
	body, err := withoutServerOwned(body)
	if err != nil {
		return nil, badPayload(err)
	}
	payload := c.payload()
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(payload); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, validationError([]FieldError{{Field: typeErr.Field, Rule: "type", Param: typeErr.Type.String()}}, err)
		}
		if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
			appErr := badPayload(err)
			appErr.Details = map[string]any{"field": strings.Trim(name, `"`)}
			return nil, appErr
		}
		return nil, badPayload(err)
	}
	if d, ok := payload.(defaulter); ok {
		d.applyDefaults()
	}
	if err := v.Struct(payload); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, validationError(fieldErrors(verrs), err)
		}
		return nil, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	doc := Record{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// withoutServerOwned checks body is exactly one JSON object and removes the
// server-owned keys from it.
func withoutServerOwned(body []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("payload must be a JSON object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON object")
	}
	stripped := false
	for _, key := range serverOwned {
		if _, ok := fields[key]; ok {
			delete(fields, key)
			stripped = true
		}
	}
	if !stripped {
		return body, nil
	}
	return json.Marshal(fields)
}

func badPayload(err error) *common.AppError {
	return common.NewAppError("BAD_REQUEST", "invalid request payload", http.StatusBadRequest, err)
}

func fieldErrors(verrs validator.ValidationErrors) []FieldError {
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		out = append(out, FieldError{Field: field, Rule: fe.Tag(), Param: fe.Param()})
	}
	return out
}

func validationError(fields []FieldError, err error) *common.AppError {
	appErr := common.NewAppError("VALIDATION_ERROR", "payload failed validation", http.StatusUnprocessableEntity, err)
	appErr.Details = map[string]any{"fields": fields}
	return appErr
}
