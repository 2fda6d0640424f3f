// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	stderrors "errors"
	"fmt"
)

// Code identifies an engine-level error class. Codes are stable strings
// surfaced in run records and API responses.
type Code string

const (
	CodeWorkflowNotFound        Code = "WORKFLOW_NOT_FOUND"
	CodeStepNotFound            Code = "STEP_NOT_FOUND"
	CodeCycleDetected           Code = "CYCLE_DETECTED"
	CodeTypeError               Code = "TYPE_ERROR"
	CodeBranchUnresolved        Code = "BRANCH_UNRESOLVED"
	CodeSandboxError            Code = "SANDBOX_ERROR"
	CodeSandboxTimeout          Code = "SANDBOX_TIMEOUT"
	CodeLLMError                Code = "LLM_ERROR"
	CodeWebhookSignatureMissing Code = "WEBHOOK_SIGNATURE_MISSING"
	CodeWebhookSignatureInvalid Code = "WEBHOOK_SIGNATURE_INVALID"
	CodeCancelled               Code = "CANCELLED"
	CodeDeadlineExceeded        Code = "DEADLINE_EXCEEDED"
	CodeValidation              Code = "VALIDATION_ERROR"
)

// EngineError is an error carrying a stable engine code. The message is what
// ends up in the run's error column, so it should stand alone without the
// surrounding call stack.
type EngineError struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return string(e.Code)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// New creates an EngineError with the given code and formatted message.
func New(code Code, format string, args ...any) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an EngineError wrapping an underlying cause.
func Wrap(code Code, cause error, format string, args ...any) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf extracts the engine code from err, walking the wrap chain.
// Returns an empty code when err carries none.
func CodeOf(err error) Code {
	var ee *EngineError
	if stderrors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// HasCode reports whether err carries the given engine code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
