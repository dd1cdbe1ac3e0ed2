// Package auth holds credential primitives: password hashing, bearer tokens,
// OAuth state values and the Google/GitHub OAuth clients.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"

	githubAPIBaseURL = "https://api.github.com"
)

// ErrUnverifiedEmail means the provider could not vouch for any address of
// the account. Such logins are refused because accounts are matched by email.
var ErrUnverifiedEmail = errors.New("oauth account has no verified email")

// Identity is what an OAuth provider tells us about the signed-in account.
type Identity struct {
	Email string
	Name  string
}

type OAuthProvider interface {
	Name() string
	AuthCodeURL(state string) string
	FetchIdentity(ctx context.Context, code string) (*Identity, error)
}

type GoogleOAuth struct {
	cfg *oauth2.Config
}

func NewGoogleOAuth(clientID, clientSecret, redirectURL string) *GoogleOAuth {
	return &GoogleOAuth{cfg: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"email", "profile"},
	}}
}

func (g *GoogleOAuth) Name() string { return ProviderGoogle }

func (g *GoogleOAuth) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

func (g *GoogleOAuth) FetchIdentity(ctx context.Context, code string) (*Identity, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google code exchange failed: %w", err)
	}

	svc, err := googleoauth2.NewService(ctx, option.WithTokenSource(g.cfg.TokenSource(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("google oauth2 service: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google userinfo request failed: %w", err)
	}
	return googleIdentity(info)
}

func googleIdentity(info *googleoauth2.Userinfo) (*Identity, error) {
	if info.Email == "" {
		return nil, errors.New("google account has no email")
	}
	if info.VerifiedEmail == nil || !*info.VerifiedEmail {
		return nil, ErrUnverifiedEmail
	}
	return &Identity{Email: info.Email, Name: info.Name}, nil
}

type GitHubOAuth struct {
	cfg        *oauth2.Config
	apiBaseURL string
}

func NewGitHubOAuth(clientID, clientSecret, redirectURL string) *GitHubOAuth {
	return &GitHubOAuth{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"user:email"},
		},
		apiBaseURL: githubAPIBaseURL,
	}
}

func (g *GitHubOAuth) Name() string { return ProviderGitHub }

func (g *GitHubOAuth) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

type githubUser struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (g *GitHubOAuth) FetchIdentity(ctx context.Context, code string) (*Identity, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("github code exchange failed: %w", err)
	}
	client := g.cfg.Client(ctx, tok)

	var user githubUser
	if err := getJSON(ctx, client, g.apiBaseURL+"/user", &user); err != nil {
		return nil, fmt.Errorf("github user request failed: %w", err)
	}

	var emails []githubEmail
	if err := getJSON(ctx, client, g.apiBaseURL+"/user/emails", &emails); err != nil {
		return nil, fmt.Errorf("github emails request failed: %w", err)
	}
	email, ok := verifiedGitHubEmail(emails)
	if !ok {
		return nil, ErrUnverifiedEmail
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}
	return &Identity{Email: email, Name: name}, nil
}

// verifiedGitHubEmail prefers the verified primary address, then any other
// verified one.
func verifiedGitHubEmail(emails []githubEmail) (string, bool) {
	fallback := ""
	for _, e := range emails {
		if !e.Verified || e.Email == "" {
			continue
		}
		if e.Primary {
			return e.Email, true
		}
		if fallback == "" {
			fallback = e.Email
		}
	}
	return fallback, fallback != ""
}

func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
