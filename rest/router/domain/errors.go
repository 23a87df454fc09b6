package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrCancelled: o chamador desistiu de esperar. A request segue seu curso.
	ErrCancelled = errors.New("request wait cancelled")
	// ErrRouterClosed: o router fechou antes de despachar a request.
	ErrRouterClosed = errors.New("router closed")
	// ErrRetriesExhausted acompanha todo ServerError.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// ServerError é a falha terminal após esgotar as tentativas em 5xx ou transporte.
// Status == 0 indica falha de transporte (Err guarda a causa).
type ServerError struct {
	Status   int
	Attempts int
	Body     []byte
	Err      error
}

func (e *ServerError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("transport failure after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("server error %d after %d attempts", e.Status, e.Attempts)
}

func (e *ServerError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRetriesExhausted}
	}
	return []error{ErrRetriesExhausted, e.Err}
}

// ClientError é um 4xx (exceto 429): defeito do lado de quem chamou, nunca repetido.
type ClientError struct {
	Status  int
	Code    int
	Message string
	Body    []byte
}

func NewClientError(status int, body []byte) *ClientError {
	e := &ClientError{Status: status, Body: body}
	var payload struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if len(body) > 0 && json.Unmarshal(body, &payload) == nil {
		e.Code = payload.Code
		e.Message = payload.Message
	}
	return e
}

func (e *ClientError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("client error %d: %s (code %d)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("client error %d", e.Status)
}
