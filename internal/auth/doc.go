// Package auth provides authentication and authorisation for the asset
// transfer service.
//
// It implements a two-tier role model (user → admin) with:
//   - Argon2id password hashing (OWASP 2025 recommendation)
//   - Stateless HS256 access tokens whose subject is the username
//   - Static role-permission mapping (compile-time, no database lookup)
//   - First-boot seeding of accounts from configuration
//
// The username carried in a token is the identity the transfer engine uses
// for ownership and approval checks; whether a caller is a party to a
// transfer is decided there, not here.
package auth
