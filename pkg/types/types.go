// Package domain defines the core types shared by the eBay account and
// listing integration.
package domain

import (
	"fmt"
	"time"
)

// Environment selects the sandbox or production deployment of the eBay APIs.
type Environment string

// Environment constants.
const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

// ParseEnvironment validates s as an Environment.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(s) {
	case EnvSandbox, EnvProduction:
		return Environment(s), nil
	default:
		return "", fmt.Errorf("unknown environment %q (want sandbox or production)", s)
	}
}

// Valid reports whether e is a known environment.
func (e Environment) Valid() bool {
	return e == EnvSandbox || e == EnvProduction
}

// AccountKey builds the registry key for a seller in an environment.
func AccountKey(userID string, env Environment) string {
	return userID + "_" + string(env)
}

// TokenSet is the OAuth2 credential material for one account.
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"token_expiry"`
}

// Account is one seller's credential set in one environment. The
// environment never changes once the account exists; connecting the same
// seller in the other environment produces a different account.
type Account struct {
	UserID       string      `json:"user_id"`
	Username     string      `json:"username"`
	Environment  Environment `json:"environment"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenExpiry  time.Time   `json:"token_expiry"`
	ConnectedAt  time.Time   `json:"connected_at"`
	LastUsedAt   time.Time   `json:"last_used_at"`
}

// Key returns the registry key of the account.
func (a *Account) Key() string {
	return AccountKey(a.UserID, a.Environment)
}

// Tokens returns the account's credential material.
func (a *Account) Tokens() TokenSet {
	return TokenSet{
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
		Expiry:       a.TokenExpiry,
	}
}

// ApplyTokens overwrites the credential material. An empty refresh token
// keeps the existing one.
func (a *Account) ApplyTokens(t TokenSet) {
	a.AccessToken = t.AccessToken
	if t.RefreshToken != "" {
		a.RefreshToken = t.RefreshToken
	}
	a.TokenExpiry = t.Expiry
}

// Identity is the marketplace user a token belongs to.
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	// Source names the strategy that produced the identity.
	Source string `json:"source"`
}
