// Package auth restricts the service to an allow-listed set of Google
// accounts. Sessions are HS256-signed JWTs carried in an HttpOnly cookie and
// every request is re-checked against the allow-list by the Gate.
package auth
