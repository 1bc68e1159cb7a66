// Package apperr holds sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotText         = errors.New("not a text file")
	ErrNotObject       = errors.New("not an object file")
)
