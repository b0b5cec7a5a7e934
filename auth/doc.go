// Package auth guards the connopsd admin endpoints with HS256 bearer
// tokens.
//
// A JWTAuthenticator verifies tokens against a KeyProvider and yields an
// Identity; Middleware applies it to an http.Handler and stores the
// Identity in the request context.
package auth
