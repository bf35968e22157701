// Package calcerr implements the error taxonomy of the calculator core.
//
// Every non-control result a command can produce is one of these. A command
// either fully succeeds or fully aborts with one of these codes; there is no
// partial-success state (see spec §7).
package calcerr

import "fmt"

// Class groups codes by who consumes them, per the table in spec §7.
type Class string

const (
	ClassOperandType Class = "operand_type"
	ClassBounds      Class = "bounds"
	ClassLookup      Class = "lookup"
	ClassMath        Class = "math"
	ClassResources   Class = "resources"
	ClassFlow        Class = "flow"
	ClassSystem      Class = "system"
)

// Code enumerates every distinct variant named in spec §7.
type Code string

const (
	// Operand type
	CodeInvalidType       Code = "InvalidType"
	CodeAlphaDataIsInvalid Code = "AlphaDataIsInvalid"
	CodeInvalidData       Code = "InvalidData"

	// Bounds
	CodeOutOfRange      Code = "OutOfRange"
	CodeDimensionError  Code = "DimensionError"
	CodeSizeError       Code = "SizeError"
	CodeStackDepthError Code = "StackDepthError"

	// Lookup
	CodeNonexistent    Code = "Nonexistent"
	CodeLabelNotFound  Code = "LabelNotFound"
	CodeNoMenuVariables Code = "NoMenuVariables"

	// Math
	CodeDivideBy0           Code = "DivideBy0"
	CodeStatMathError       Code = "StatMathError"
	CodeInvalidForecastModel Code = "InvalidForecastModel"

	// Resources
	CodeInsufficientMemory  Code = "InsufficientMemory"
	CodeRestrictedOperation Code = "RestrictedOperation"
	CodeNameTooLong         Code = "NameTooLong"

	// Flow control (not displayed, alter dispatch — see core.Outcome)
	CodeYes            Code = "Yes"
	CodeNo             Code = "No"
	CodeStop           Code = "Stop"
	CodeRun            Code = "Run"
	CodeInterruptible  Code = "Interruptible"
	CodeNone           Code = "None"

	// System
	CodeInternalError    Code = "InternalError"
	CodePrintingDisabled Code = "PrintingIsDisabled"
	CodeSuspiciousOff    Code = "SuspiciousOff"
	CodeSolveSolve       Code = "SolveSolve"
	CodeIntegInteg       Code = "IntegInteg"
)

var classOf = map[Code]Class{
	CodeInvalidType:        ClassOperandType,
	CodeAlphaDataIsInvalid: ClassOperandType,
	CodeInvalidData:        ClassOperandType,

	CodeOutOfRange:      ClassBounds,
	CodeDimensionError:  ClassBounds,
	CodeSizeError:       ClassBounds,
	CodeStackDepthError: ClassBounds,

	CodeNonexistent:     ClassLookup,
	CodeLabelNotFound:   ClassLookup,
	CodeNoMenuVariables: ClassLookup,

	CodeDivideBy0:            ClassMath,
	CodeStatMathError:        ClassMath,
	CodeInvalidForecastModel: ClassMath,

	CodeInsufficientMemory:  ClassResources,
	CodeRestrictedOperation: ClassResources,
	CodeNameTooLong:         ClassResources,

	CodeYes:           ClassFlow,
	CodeNo:            ClassFlow,
	CodeStop:          ClassFlow,
	CodeRun:           ClassFlow,
	CodeInterruptible: ClassFlow,
	CodeNone:          ClassFlow,

	CodeInternalError:    ClassSystem,
	CodePrintingDisabled: ClassSystem,
	CodeSuspiciousOff:    ClassSystem,
	CodeSolveSolve:       ClassSystem,
	CodeIntegInteg:       ClassSystem,
}

// CalcError is the single error type for the calculator core. It satisfies
// the standard error interface; flow-control codes (Yes/No/Stop/Run/
// Interruptible/None) are never shown to the user — the interpreter
// switches on Code directly instead of formatting them.
type CalcError struct {
	Code    Code
	Class   Class
	Detail  string // optional extra context, never shown for flow codes
	Program int    // offending (program, pc), -1 if not applicable
	PC      int
}

func (e *CalcError) Error() string {
	if e.Detail == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// IsControl reports whether this is a dispatch control code (Yes/No/Stop/
// Run/Interruptible/None) rather than a displayable error, per spec §7.
func (e *CalcError) IsControl() bool {
	return e.Class == ClassFlow
}

func newErr(code Code, detail string) *CalcError {
	return &CalcError{Code: code, Class: classOf[code], Detail: detail, Program: -1, PC: -1}
}

// New constructs a CalcError for any taxonomy code with optional detail.
func New(code Code, detail string) *CalcError { return newErr(code, detail) }

// Convenience constructors for the codes the interpreter raises most often.
func InvalidType(detail string) *CalcError        { return newErr(CodeInvalidType, detail) }
func AlphaDataIsInvalid() *CalcError               { return newErr(CodeAlphaDataIsInvalid, "") }
func InvalidData(detail string) *CalcError        { return newErr(CodeInvalidData, detail) }
func OutOfRange() *CalcError                       { return newErr(CodeOutOfRange, "") }
func DimensionError() *CalcError                   { return newErr(CodeDimensionError, "") }
func SizeError() *CalcError                        { return newErr(CodeSizeError, "") }
func StackDepthError() *CalcError                  { return newErr(CodeStackDepthError, "") }
func Nonexistent() *CalcError                      { return newErr(CodeNonexistent, "") }
func LabelNotFound(name string) *CalcError         { return newErr(CodeLabelNotFound, name) }
func NoMenuVariables() *CalcError                  { return newErr(CodeNoMenuVariables, "") }
func DivideBy0() *CalcError                         { return newErr(CodeDivideBy0, "") }
func StatMathError() *CalcError                     { return newErr(CodeStatMathError, "") }
func InsufficientMemory() *CalcError                { return newErr(CodeInsufficientMemory, "") }
func RestrictedOperation() *CalcError                { return newErr(CodeRestrictedOperation, "") }
func NameTooLong() *CalcError                        { return newErr(CodeNameTooLong, "") }
func InternalError(detail string) *CalcError        { return newErr(CodeInternalError, detail) }
func SolveSolve() *CalcError                         { return newErr(CodeSolveSolve, "") }
func IntegInteg() *CalcError                         { return newErr(CodeIntegInteg, "") }

// Control-flow pseudo-errors. The interpreter never prints these; they are
// returned from command handlers purely to steer dispatch (spec §4.3).
func Yes() *CalcError           { return newErr(CodeYes, "") }
func No() *CalcError            { return newErr(CodeNo, "") }
func Stop() *CalcError          { return newErr(CodeStop, "") }
func Run() *CalcError           { return newErr(CodeRun, "") }
func Interruptible() *CalcError { return newErr(CodeInterruptible, "") }
func None() *CalcError          { return newErr(CodeNone, "") }

// Is reports whether err is a *CalcError with the given code — the idiomatic
// errors.Is target pattern, so callers can do calcerr.Is(err, calcerr.CodeDivideBy0).
func Is(err error, code Code) bool {
	ce, ok := err.(*CalcError)
	return ok && ce.Code == code
}
