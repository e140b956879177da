package tui

import "errors"

// ErrMissingRetriever is returned when the retriever service is not provided.
var ErrMissingRetriever = errors.New("tui: retriever is required")

// ErrInvalidPorts is returned when ports validation fails.
var ErrInvalidPorts = errors.New("tui: invalid ports configuration")
