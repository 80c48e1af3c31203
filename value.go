// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package calcsheet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Value is a cell value: nil (empty), float64, string, bool, []any,
// *Error, or whatever else the Evaluator produces.
type Value = any

// ErrorCode is a spreadsheet error code, following Excel conventions.
type ErrorCode uint8

const (
	ErrorCodeNull  ErrorCode = 1 // #NULL!
	ErrorCodeDiv0  ErrorCode = 2 // #DIV/0!
	ErrorCodeValue ErrorCode = 3 // #VALUE! - wrong type of argument or operand
	ErrorCodeRef   ErrorCode = 4 // #REF! - invalid cell reference
	ErrorCodeName  ErrorCode = 5 // #NAME? - unrecognized name
	ErrorCodeNum   ErrorCode = 6 // #NUM!
	ErrorCodeNA    ErrorCode = 7 // #N/A
	ErrorCodeCycle ErrorCode = 8 // #CYCLE! - circular dependency
	ErrorCodeOther ErrorCode = 9 // #ERROR!
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCodeNull:  "#NULL!",
	ErrorCodeDiv0:  "#DIV/0!",
	ErrorCodeValue: "#VALUE!",
	ErrorCodeRef:   "#REF!",
	ErrorCodeName:  "#NAME?",
	ErrorCodeNum:   "#NUM!",
	ErrorCodeNA:    "#N/A",
	ErrorCodeCycle: "#CYCLE!",
	ErrorCodeOther: "#ERROR!",
}

func (c ErrorCode) String() string {
	if s, ok := errorCodeNames[c]; ok {
		return s
	}
	return errorCodeNames[ErrorCodeOther]
}

// Error is an error value held by a cell.
// It is an ordinary value: it is cached and it flows into every formula
// that reads the cell.
type Error struct {
	Code    ErrorCode
	Message string
}

// NewError returns a new error value. An empty message defaults to the code.
func NewError(code ErrorCode, message string) *Error {
	if message == "" {
		message = code.String()
	}
	return &Error{Code: code, Message: message}
}

// Errorf returns a new error value with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code.String()
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// AsError returns the *Error carried by v, if any.
func AsError(v Value) (*Error, bool) {
	switch x := v.(type) {
	case *Error:
		return x, x != nil
	case error:
		var e *Error
		if errors.As(x, &e) {
			return e, true
		}
	}
	return nil, false
}

// ParseLiteral converts literal cell text to a value: nil for empty
// text, float64 for numbers, the text itself otherwise.
func ParseLiteral(s string) Value {
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return f
	}
	return s
}

// FormatValue renders a value for display.
func FormatValue(v Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case *Error:
		return x.Code.String()
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = FormatValue(e)
		}
		return strings.Join(parts, ", ")
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
