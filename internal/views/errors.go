package views

import "errors"

// ErrNotFound is reported when a view refers to something the API does not list.
var ErrNotFound = errors.New("not found")
