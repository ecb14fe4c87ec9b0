package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sadopc/taskdeck/internal/model"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a bearer token, stores it and returns the
// signed-in user's profile. The stored token is left untouched on failure.
func (c *Client) Login(ctx context.Context, email, password string) (model.User, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var tok tokenResponse
	err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/login",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}, &tok)
	if err != nil {
		return model.User{}, err
	}
	if tok.AccessToken == "" {
		return model.User{}, &Error{
			StatusCode: http.StatusOK,
			Message:    "login: response carried no access token",
			Err:        ErrUnexpectedShape,
		}
	}

	user, err := c.profile(ctx, tok.AccessToken)
	if err != nil {
		return model.User{}, fmt.Errorf("fetch profile: %w", err)
	}
	if err := c.tokens.SetToken(tok.AccessToken); err != nil {
		return model.User{}, fmt.Errorf("store token: %w", err)
	}
	c.log.Info().Str("user_id", user.ID).Msg("signed in")
	return user, nil
}

// Register creates an account. It does not sign in.
func (c *Client) Register(ctx context.Context, email, password string) (model.User, error) {
	req, err := jsonRequest(http.MethodPost, "/auth/register", credentials{Email: email, Password: password})
	if err != nil {
		return model.User{}, err
	}
	var u model.User
	if err := c.do(ctx, req, &u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// Profile returns the user the stored token belongs to.
func (c *Client) Profile(ctx context.Context) (model.User, error) {
	return c.profile(ctx, "")
}

func (c *Client) profile(ctx context.Context, token string) (model.User, error) {
	var u model.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/user/profile", token: token}, &u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// Verify checks the stored token. An expired token (by its exp claim, or a
// 401 from the server) is cleared and ErrSessionExpired returned. Other
// failures leave the token in place.
func (c *Client) Verify(ctx context.Context) (model.User, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return model.User{}, fmt.Errorf("read token: %w", err)
	}
	if token == "" {
		return model.User{}, ErrNotAuthenticated
	}

	if TokenExpired(token, c.now()) {
		c.log.Info().Msg("stored token expired")
		return model.User{}, c.expire()
	}

	user, err := c.Profile(ctx)
	if err != nil {
		if IsStatus(err, http.StatusUnauthorized) {
			return model.User{}, c.expire()
		}
		return model.User{}, err
	}
	return user, nil
}

func (c *Client) expire() error {
	if err := c.tokens.ClearToken(); err != nil {
		return errors.Join(ErrSessionExpired, fmt.Errorf("clear token: %w", err))
	}
	return ErrSessionExpired
}

// Logout forgets the stored token. The server keeps no session to end.
func (c *Client) Logout() error {
	if err := c.tokens.ClearToken(); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	c.log.Info().Msg("signed out")
	return nil
}
