package provider

import "errors"

// Error kinds surfaced by implementations, matched with errors.Is. Auth and
// not-found failures need operator intervention; rate limiting is transient
// and resolves on a later cycle.
var (
	ErrAuth        = errors.New("dns provider rejected credentials")
	ErrNotFound    = errors.New("dns record not found")
	ErrRateLimited = errors.New("dns provider rate limited request")
)
