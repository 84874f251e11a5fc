package table

import (
	"errors"
	"fmt"
)

var (
	ErrColumnNotFound = errors.New("column not found")
	ErrRecordNotFound = errors.New("record not found")
)

type ErrorKind int

const (
	KindColumnNotFound ErrorKind = iota + 1
	KindRecordNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindColumnNotFound:
		return "column_not_found"
	case KindRecordNotFound:
		return "record_not_found"
	default:
		return "unknown"
	}
}

// LookupError is returned when a header label or a company row is missing.
// Callers branch on Kind or use errors.Is with ErrColumnNotFound / ErrRecordNotFound.
type LookupError struct {
	Kind    ErrorKind
	Column  string
	Company string
}

func (e *LookupError) Error() string {
	switch e.Kind {
	case KindColumnNotFound:
		return fmt.Sprintf("column '%s' not found in the table", e.Column)
	case KindRecordNotFound:
		return fmt.Sprintf("Данные для компании '%s' не были найдены", e.Company)
	default:
		return "table lookup failed"
	}
}

func (e *LookupError) Is(target error) bool {
	switch target {
	case ErrColumnNotFound:
		return e.Kind == KindColumnNotFound
	case ErrRecordNotFound:
		return e.Kind == KindRecordNotFound
	}
	return false
}
