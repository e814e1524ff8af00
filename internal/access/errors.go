package access

import "errors"

// Denial reasons reported by the guard. None of them is returned past the
// guard boundary as a failure: they travel inside a Verdict so the routing
// layer can turn them into redirects.
var (
	ErrUnauthenticated        = errors.New("authentication required")
	ErrMissingRole            = errors.New("user has no valid global role")
	ErrInsufficientPermission = errors.New("insufficient permission")
	ErrResolution             = errors.New("permission resolution failed")
)

// ErrCanceled is returned by Evaluation.Wait when the evaluation was
// superseded or abandoned before it settled.
var ErrCanceled = errors.New("evaluation canceled")
