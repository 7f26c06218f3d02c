package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaCUE string

// ValidationError describes a payload that does not satisfy the report schema.
type ValidationError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid payload: %s", e.Message)
	}
	return fmt.Sprintf("invalid payload: %s: %s", e.Field, e.Message)
}

// Validator checks payloads against the embedded CUE schema.
//
// A cue.Context is not safe for concurrent use, so Validate serializes calls.
type Validator struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// NewValidator compiles the report schema.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile report schema: %w", err)
	}
	return &Validator{ctx: ctx, schema: schema}, nil
}

// Validate returns a *ValidationError if payload is not a JSON object
// satisfying the schema: kecamatan, desa and jenis_bencana present and
// non-empty, counts non-negative integers, coordinates numeric.
func (v *Validator) Validate(payload json.RawMessage) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return &ValidationError{Message: "payload is empty"}
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return &ValidationError{Message: "payload must be a JSON object"}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	data := v.ctx.CompileBytes(trimmed, cue.Filename("payload.json"))
	if err := data.Err(); err != nil {
		return formatCUEError(err)
	}
	unified := v.schema.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError converts the first CUE error into a ValidationError.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Message: err.Error()}
	}

	first := errs[0]
	ve := &ValidationError{
		Field:   strings.Join(errors.Path(first), "."),
		Message: first.Error(),
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		ve.Pos = positions[0]
	}
	return ve
}
