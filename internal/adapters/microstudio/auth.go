package microstudio

import (
	"context"
	"fmt"
)

// authenticate tries the stored token first and falls back to a credential
// login when the token is missing, rejected, or its call fails.
func (c *Client) authenticate(ctx context.Context) error {
	if token := c.Token(); token != "" {
		validated, err := c.validateToken(ctx, token)
		if err == nil && validated {
			c.log.Info().Msg("Session token accepted")
			return nil
		}
		c.log.Info().Err(err).Bool("validated", validated).Msg("Session token not accepted, logging in with credentials")
	}
	return c.login(ctx)
}

func (c *Client) validateToken(ctx context.Context, token string) (bool, error) {
	msg, err := c.Call(ctx, RequestToken, Payload{"token": token})
	if err != nil {
		return false, err
	}
	var resp TokenValid
	if err := msg.Into(&resp); err != nil {
		return false, err
	}
	if !resp.Flags.Validated {
		return false, nil
	}
	if resp.Nick != "" {
		c.mu.Lock()
		c.creds.Nick = resp.Nick
		c.mu.Unlock()
	}
	return true, nil
}

// login replaces the session token with the one the server issues.
func (c *Client) login(ctx context.Context) error {
	c.mu.Lock()
	nick, password := c.creds.Nick, c.creds.Password
	c.mu.Unlock()

	// Transport failures of the login call are not a refusal.
	msg, err := c.Call(ctx, RequestLogin, Payload{"nick": nick, "password": password})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	var resp LoggedIn
	if err := msg.Into(&resp); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if resp.Token == "" {
		return fmt.Errorf("%w: login failed: no token returned by server", ErrAuthentication)
	}

	c.mu.Lock()
	c.creds.Token = resp.Token
	if resp.Nick != "" {
		c.creds.Nick = resp.Nick
	}
	c.mu.Unlock()
	c.log.Info().Str("nick", c.Nick()).Msg("Logged in with credentials")
	return nil
}
