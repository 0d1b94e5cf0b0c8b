// Package token provides digest primitives for Love Ludo.
//
// It is the single source of truth for how short secrets become stable hex
// digests. Today that is the admin cookie value, derived from the configured
// admin key so the raw key never travels in a cookie.
//
// Modes:
// - Default dev/back-compat mode: SHA-256(value) when no HMAC key is configured.
// - Keyed mode: HMAC-SHA256(value, key) when LUDO_TOKEN_HMAC_KEY is set.
//
// Output is always 64-char hex, suitable for storage and constant-time
// comparison.
package token
