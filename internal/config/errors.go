package config

import "errors"

var (
	// ErrInvalidLimit is returned when the page budget is not greater than 0
	ErrInvalidLimit = errors.New("limit must be greater than 0")
	// ErrInvalidConcurrency is returned when concurrency is not greater than 0
	ErrInvalidConcurrency = errors.New("concurrency must be greater than 0")
	// ErrInvalidTimeout is returned when request timeout is not greater than 0
	ErrInvalidTimeout = errors.New("request_timeout must be greater than 0")
	// ErrInvalidRetry is returned when the retry attempt budget is not greater than 0
	ErrInvalidRetry = errors.New("retry.max_attempts must be greater than 0")
	// ErrEmptyOutputPath is returned when the JSON output path is empty
	ErrEmptyOutputPath = errors.New("output cannot be empty")
	// ErrEmptyAddr is returned when the server listen address is empty
	ErrEmptyAddr = errors.New("serve.addr cannot be empty")
	// ErrEmptyInput is returned when the server has neither a JSON input nor a database
	ErrEmptyInput = errors.New("serve.input or serve.database_path must be set")
)
