package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound es la base de los errores "no encontrado" de cada dominio.
	ErrNotFound = errors.New("not found")
	// ErrConcurrentModification indica que la versión esperada ya no es la actual.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrAlreadyProcessing indica que la clave de idempotencia está reservada por otro proceso.
	ErrAlreadyProcessing = errors.New("already processing")
	// ErrUnroutableEvent indica un tipo de evento sin ruta ni esquema registrado.
	ErrUnroutableEvent = errors.New("unroutable event")
)

// FieldError describe un campo inválido.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError agrupa todos los campos que no cumplen las reglas de negocio.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add acumula un campo inválido.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil devuelve nil si no se acumuló ningún campo.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NewValidationError crea un ValidationError de un solo campo.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// IsValidation informa si err es (o envuelve) un ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// TransientError es un fallo de infraestructura que se reintenta con backoff.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient error in %s: %v", e.Op, e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient envuelve err como reintentable.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// TerminalError es un fallo de procesamiento que no mejora reintentando.
// Los workers lo mandan directamente a la dead-letter queue.
type TerminalError struct {
	Reason string
	Err    error
}

func (e *TerminalError) Error() string {
	if e.Err == nil {
		return "terminal processing error: " + e.Reason
	}
	return fmt.Sprintf("terminal processing error: %s: %v", e.Reason, e.Err)
}

func (e *TerminalError) Unwrap() error { return e.Err }

// Terminal envuelve err como no reintentable.
func Terminal(reason string, err error) error {
	return &TerminalError{Reason: reason, Err: err}
}

// IsTerminal informa si err es (o envuelve) un TerminalError.
func IsTerminal(err error) bool {
	var t *TerminalError
	return errors.As(err, &t)
}

// IsTransient informa si err es (o envuelve) un TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
