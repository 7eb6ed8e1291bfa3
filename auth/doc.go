// Package auth guards probe endpoints with bearer JWTs.
//
// Tokens are HMAC-signed and checked for signature, expiry, and the
// configured issuer and audience. Middleware rejects requests without a
// valid token with 401 and attaches the caller's Identity to the request
// context otherwise.
package auth
