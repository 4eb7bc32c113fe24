// Package submission turns raw form bodies into typed, validated payloads and
// composes the notification email for each form.
package submission

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var ErrMalformedBody = errors.New("submission: request body is not a valid JSON object")

// Contact is the body of a contact inquiry.
type Contact struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,loose_email"`
	Message   string `json:"message" validate:"required"`
	Reason    string `json:"reason"`
}

// Reminder is the body of a reminder request for the page the visitor is on.
type Reminder struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,loose_email"`
	PageURL   string `json:"pageUrl"`
	PageTitle string `json:"pageTitle"`
}

// Decode reads a single JSON object from r into dst. Unknown fields are
// ignored and null values leave a field empty; anything else that does not
// fit dst is ErrMalformedBody.
func Decode(r io.Reader, dst any) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return errors.Join(ErrMalformedBody, err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return ErrMalformedBody
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(dst); err != nil {
		return errors.Join(ErrMalformedBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: body must contain a single JSON object", ErrMalformedBody)
	}
	return nil
}
