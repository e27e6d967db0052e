// Package result defines the envelope every backend operation returns:
//
//	{"ok": bool, "data": {...}, "errors": [...], "warnings": [...]}
//
// A failed result carries a machine-readable error code next to the
// human-readable messages and always serializes data as an empty object.
package result

import (
	"encoding/json"

	"github.com/mbuck21/BOM-Manager/pkg/errors"
)

// Result is the outcome of one operation.
type Result[T any] struct {
	OK       bool
	Data     T
	Errors   []string
	Warnings []string
	Code     errors.Code

	err error
}

// Ok returns a successful result.
func Ok[T any](data T, warnings ...string) Result[T] {
	return Result[T]{OK: true, Data: data, Errors: []string{}, Warnings: normalize(warnings)}
}

// Fail returns a failed result built from err. Errors joined with
// errors.Join contribute one message each; the code comes from the first
// coded error found, INTERNAL_ERROR otherwise. A failure carries no
// warnings.
func Fail[T any](err error) Result[T] {
	res := Result[T]{Errors: messages(err), Warnings: []string{}, err: err}
	res.Code = errors.GetCode(err)
	if res.Code == "" {
		res.Code = errors.ErrCodeInternal
	}
	return res
}

// Err returns the error a failed result was built from, or nil.
func (r Result[T]) Err() error {
	if r.OK {
		return nil
	}
	if r.err == nil {
		return errors.New(r.Code, "%s", firstOr(r.Errors, "operation failed"))
	}
	return r.err
}

type envelope struct {
	OK       bool        `json:"ok"`
	Data     any         `json:"data"`
	Errors   []string    `json:"errors"`
	Warnings []string    `json:"warnings"`
	Code     errors.Code `json:"code,omitempty"`
}

// MarshalJSON writes the envelope. Data is {} on failure.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	env := envelope{OK: r.OK, Data: r.Data, Errors: normalize(r.Errors), Warnings: normalize(r.Warnings)}
	if !r.OK {
		env.Data = struct{}{}
		env.Code = r.Code
	}
	return json.Marshal(env)
}

// UnmarshalJSON reads an envelope written by MarshalJSON.
func (r *Result[T]) UnmarshalJSON(data []byte) error {
	var raw struct {
		OK       bool            `json:"ok"`
		Data     json.RawMessage `json:"data"`
		Errors   []string        `json:"errors"`
		Warnings []string        `json:"warnings"`
		Code     errors.Code     `json:"code"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Result[T]{OK: raw.OK, Errors: normalize(raw.Errors), Warnings: normalize(raw.Warnings), Code: raw.Code}
	if raw.OK && len(raw.Data) > 0 {
		return json.Unmarshal(raw.Data, &r.Data)
	}
	return nil
}

// Guard runs fn and wraps its outcome. A panic inside fn becomes an
// INTERNAL_ERROR failure "<op> failed: <panic>", and so does an uncoded
// error.
func Guard[T any](op string, fn func() (T, []string, error)) (res Result[T]) {
	defer func() {
		if p := recover(); p != nil {
			res = Fail[T](errors.New(errors.ErrCodeInternal, "%s failed: %v", op, p))
		}
	}()
	data, warnings, err := fn()
	if err != nil {
		if errors.GetCode(err) == "" {
			err = errors.Wrap(errors.ErrCodeInternal, err, "%s failed", op)
		}
		return Fail[T](err)
	}
	return Ok(data, warnings...)
}

// Map converts a successful result's data, keeping warnings. Failures pass
// through unchanged.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if !r.OK {
		out := Fail[U](r.Err())
		out.Errors = r.Errors
		return out
	}
	return Ok(fn(r.Data), r.Warnings...)
}

func messages(err error) []string {
	if err == nil {
		return []string{}
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, messages(e)...)
		}
		return out
	}
	return []string{errors.UserMessage(err)}
}

func normalize(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func firstOr(s []string, def string) string {
	if len(s) > 0 {
		return s[0]
	}
	return def
}
