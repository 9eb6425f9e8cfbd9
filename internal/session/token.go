package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"taskctl/internal/model"
)

// Claims are the fields the backend puts into its access tokens.
type Claims struct {
	UserID int        `json:"user_id"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// ParseClaims decodes an access token without verifying its signature. The
// client has no key; the result is for display only.
func ParseClaims(accessToken string) (*Claims, error) {
	c := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, c); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	return c, nil
}

// Claims returns the decoded claims of the current token.
func (s *Session) Claims() (*Claims, bool) {
	tok, err := s.Token()
	if err != nil {
		return nil, false
	}
	c, err := ParseClaims(tok.AccessToken)
	if err != nil {
		return nil, false
	}
	return c, true
}

func newToken(accessToken string) *oauth2.Token {
	tok := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	if c, err := ParseClaims(accessToken); err == nil && c.ExpiresAt != nil {
		tok.Expiry = c.ExpiresAt.Time
	}
	return tok
}

// decodeToken accepts the JSON token record, or a bare token string as
// written by hand.
func decodeToken(data []byte) (*oauth2.Token, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty token record")
	}
	if data[0] != '{' {
		return newToken(string(data)), nil
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token record: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("token record has no access token")
	}
	return &tok, nil
}
