// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

const (
	CanceledCode int32 = 10000
	TimeoutCode  int32 = 10001
)

type ErrorType int32

const (
	SystemError ErrorType = 0
	InputError  ErrorType = 1
)

var ErrorTypeName = map[ErrorType]string{
	SystemError: "system_error",
	InputError:  "input_error",
}

func (err ErrorType) String() string {
	return ErrorTypeName[err]
}

// Define leaf errors here,
// WARN: take care to add new error,
// check whether you can use the errors below before adding a new one.
// Name: Err + related prefix + error name
var (
	// Service related
	ErrServiceNotReady    = newEchoError("service not ready", 1, true)
	ErrServiceUnavailable = newEchoError("service unavailable", 2, true)
	ErrServiceInternal    = newEchoError("service internal error", 5, false)

	// Listener related
	// bind failures are fatal at startup, no retry
	ErrBindFailed   = newEchoError("bind failed", 100, false)
	ErrAcceptFailed = newEchoError("accept failed", 101, false)

	// Session related, never propagated beyond the session
	ErrSessionIO      = newEchoError("session io failed", 200, false)
	ErrSessionTimeout = newEchoError("session idle timeout", 201, false)
	ErrSessionClosed  = newEchoError("session closed", 202, false)

	// Datagram related
	ErrDatagramIO       = newEchoError("datagram io failed", 300, false)
	ErrDatagramMismatch = newEchoError("datagram echo length mismatch", 301, false)

	// Parameter related
	ErrParameterInvalid = newEchoError("invalid parameter", 1100, false, WithErrorType(InputError))
	ErrParameterMissing = newEchoError("missing parameter", 1101, false, WithErrorType(InputError))

	// Do NOT export this,
	// never allow programmer using this, keep only for converting unknown error to echoError
	errUnexpected = newEchoError("unexpected error", (1<<16)-1, false)
)

type errorOption func(*echoError)

func WithDetail(detail string) errorOption {
	return func(err *echoError) {
		err.detail = detail
	}
}

func WithErrorType(etype ErrorType) errorOption {
	return func(err *echoError) {
		err.errType = etype
	}
}

type echoError struct {
	msg       string
	detail    string
	retriable bool
	errCode   int32
	errType   ErrorType
}

func newEchoError(msg string, code int32, retriable bool, options ...errorOption) echoError {
	err := echoError{
		msg:       msg,
		detail:    msg,
		retriable: retriable,
		errCode:   code,
	}

	for _, option := range options {
		option(&err)
	}
	return err
}

func (e echoError) code() int32 {
	return e.errCode
}

func (e echoError) Error() string {
	return e.msg
}

func (e echoError) Detail() string {
	return e.detail
}

func (e echoError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(echoError); ok {
		return e.errCode == cause.errCode
	}
	return false
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	// To make merr work for multi errors,
	// we need cause of multi errors, which defined as the last error
	if len(e.errs) == 2 {
		return e.errs[1]
	}

	return multiErrors{
		errs: e.errs[1:],
	}
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return multiErrors{
		errs,
	}
}
