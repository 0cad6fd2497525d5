package engine

import "errors"

// errSyntax is returned by Basic's parser on malformed input.
var errSyntax = errors.New("engine: syntax error")
