package broker

import "errors"

// Authorizer-level failures. The RPC endpoint maps these onto the HTTP
// status codes and JSON-RPC error codes spec.md §4.2/§4.8 describe; broker
// itself stays transport-agnostic.
var (
	ErrMissingAuth     = errors.New("broker: missing or malformed Authorization header")
	ErrInvalidToken    = errors.New("broker: unknown token")
	ErrMailboxNotBound = errors.New("broker: mailbox not bound for this token")
	ErrDuplicateTool   = errors.New("broker: tool already registered")
	ErrUnknownTool     = errors.New("broker: tool not found")
	ErrValidation      = errors.New("broker: arguments failed schema validation")
)
