package fetcher

import (
	"encoding/json"
)

// Result holds exactly one of a decoded payload or an *Error.
// Build it with Ok or Fail; the zero value is not a valid Result.
type Result struct {
	ok      bool
	payload any
	err     *Error
}

func Ok(payload any) Result {
	return Result{ok: true, payload: payload}
}

func Fail(err *Error) Result {
	if err == nil {
		err = &Error{Kind: InternalError, Err: errNilFailure}
	}
	return Result{err: err}
}

func (r Result) IsOk() bool {
	return r.ok
}

// Payload is the decoded JSON value; nil for failures.
func (r Result) Payload() any {
	return r.payload
}

// Err is the failure; nil for successes.
func (r Result) Err() *Error {
	return r.err
}

func (r Result) Envelope() Envelope {
	if r.ok {
		return Envelope{Success: true, Data: r.payload}
	}
	if r.err == nil {
		return Envelope{Error: (&Error{Kind: InternalError, Err: errNilFailure}).Error()}
	}
	return Envelope{Error: r.err.Error()}
}

// Envelope is the wire shape handed to the front-end:
// {"success": true, "data": ...} or {"success": false, "error": "..."}.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Failure builds a failure envelope outside of a fetch, e.g. for a rejected RPC.
func Failure(message string) Envelope {
	return Envelope{Error: message}
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Success {
		return json.Marshal(struct {
			Success bool `json:"success"`
			Data    any  `json:"data"`
		}{Success: true, Data: e.Data})
	}

	return json.Marshal(struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}{Success: false, Error: e.Error})
}
