package google

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	gsheet "google.golang.org/api/sheets/v4"
)

// OAuthConfig builds the consent flow for an OAuth desktop or web client,
// scoped to spreadsheet writes.
func OAuthConfig(clientJSON []byte, redirectURL string) (*oauth2.Config, error) {
	cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth client config: %w", err)
	}
	cfg.RedirectURL = redirectURL
	return cfg, nil
}

type authorizedUser struct {
	Type         string `json:"type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

// AuthorizedUserJSON encodes a user grant as "authorized_user" credentials,
// which New accepts in place of a service account key.
func AuthorizedUserJSON(cfg *oauth2.Config, tok *oauth2.Token) ([]byte, error) {
	if tok == nil || tok.RefreshToken == "" {
		return nil, errors.New("token has no refresh token; revoke the previous grant and authorize again")
	}
	return json.MarshalIndent(authorizedUser{
		Type:         "authorized_user",
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RefreshToken: tok.RefreshToken,
	}, "", "  ")
}
