package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/drivetune/internal/server"
	"github.com/desertthunder/drivetune/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// AuthLogin runs the browser consent flow and stores the Drive token.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	google := r.config.Credentials.Google
	if google.ClientID == "" || google.ClientSecret == "" {
		return fmt.Errorf("%w: credentials.google client_id and client_secret must be set", shared.ErrMissingCredentials)
	}

	token, err := r.doOAuth(ctx, r.credentials())
	if err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Token saved to %s\n", google.TokenPath)
	if token.RefreshToken == "" {
		r.writePlain("⚠ No refresh token was issued; you will need to log in again when it expires\n")
	}
	r.writePlain("\nYou can now use: drivetune files\n")
	return nil
}

// AuthStatus reports whether a Drive credential is stored.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if r.credentials().HasCredential() {
		return r.writePlain("✓ Authenticated with Google Drive\n")
	}
	return r.writePlain("✗ Not authenticated. Run: drivetune auth login\n")
}

// doOAuth serves the callback path locally, opens the consent page and waits for the exchange.
func (r *Runner) doOAuth(ctx context.Context, auth server.Authenticator) (*oauth2.Token, error) {
	state := shared.GenerateID()
	authURL := auth.AuthCodeURL(state)

	oauthHandler := server.NewOAuthHandler(auth, state, server.CallbackPath(r.config.Credentials.Google.RedirectURI))
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	serverAddr := r.config.Addr()
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Google Drive authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	return result.Token, nil
}
