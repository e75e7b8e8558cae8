package main

import (
	"errors"

	"github.com/John-Robertt/evmerge/internal/domain"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK         = 0
	exitValidation = 2
	exitUsage      = 3
	exitStoreRead  = 4
	exitStoreWrite = 5
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return 1
}

// exitForCode 把 report 的 error_code 映射为进程退出码。
func exitForCode(code string) int {
	switch code {
	case "", domain.ErrCodeEmptyInput:
		return exitOK
	case domain.ErrCodeConfigInvalid, domain.ErrCodeConfigNotFound, domain.ErrCodeStoreUnsupported:
		return exitUsage
	case domain.ErrCodeMissingColumn, domain.ErrCodeHeaderMismatch, domain.ErrCodeInputReadFailed:
		return exitValidation
	case domain.ErrCodeStoreReadFailed:
		return exitStoreRead
	case domain.ErrCodeStoreWriteFailed:
		return exitStoreWrite
	default:
		return 1
	}
}
