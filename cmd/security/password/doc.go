// Package password provides Argon2id hashing for the admin access key.
//
// LUDO_ADMIN_KEY may hold either the raw key (dev) or an encoded Argon2id
// hash (PHC-style $argon2id$... string) so deployments don't have to keep the
// plaintext key in the environment. IsEncodedHash distinguishes the two.
package password
