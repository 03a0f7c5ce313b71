package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	gsheet "finanzas/internal/sheets/google"
)

func authorizeCmd() *cobra.Command {
	var (
		clientFile string
		outFile    string
		port       int
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Grant the worker access to a spreadsheet with a Google account",
		Long: `Run the OAuth consent flow for a Google OAuth client and save the grant
as "authorized_user" credentials. Point GOOGLE_SERVICE_ACCOUNT_FILE at the
saved file to write the activity log as that user instead of a service
account.

The client must allow http://localhost:<port>/callback as a redirect URI.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := []byte(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"))
			if len(raw) == 0 {
				if clientFile == "" {
					return errors.New("set GOOGLE_OAUTH_CLIENT_JSON or pass --client")
				}
				var err error
				if raw, err = os.ReadFile(clientFile); err != nil {
					return fmt.Errorf("read client file: %w", err)
				}
			}
			redirect := fmt.Sprintf("http://localhost:%d/callback", port)
			cfg, err := gsheet.OAuthConfig(raw, redirect)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			tok, err := authorize(ctx, cfg, port, func(url string) {
				fmt.Fprintf(cmd.OutOrStdout(), "Open this URL to authorize:\n%s\n", url)
			})
			if err != nil {
				return err
			}

			creds, err := gsheet.AuthorizedUserJSON(cfg, tok)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outFile, creds, 0o600); err != nil {
				return fmt.Errorf("write credentials: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved credentials to %s\n", outFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientFile, "client", os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"), "OAuth client JSON downloaded from the Google console")
	cmd.Flags().StringVarP(&outFile, "out", "o", "credentials.json", "Where to save the credentials")
	cmd.Flags().IntVar(&port, "port", 8085, "Local port for the OAuth callback")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for consent")
	return cmd
}

// authorize serves the OAuth callback on localhost and exchanges the code
// it receives.
func authorize(ctx context.Context, cfg *oauth2.Config, port int, show func(url string)) (*oauth2.Token, error) {
	state, err := randomState()
	if err != nil {
		return nil, err
	}

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	r := chi.NewRouter()
	r.Get("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res := result{code: q.Get("code")}
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("consent refused: %s", q.Get("error"))
		case q.Get("state") != state:
			res.err = errors.New("state mismatch in OAuth callback")
		case res.code == "":
			res.err = errors.New("OAuth callback without a code")
		}
		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "You may close this window and return to the terminal.")
		}
		select {
		case results <- res:
		default:
		}
	})

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen for callback: %w", err)
	}
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	show(cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	select {
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		tok, err := cfg.Exchange(ctx, res.code)
		if err != nil {
			return nil, fmt.Errorf("token exchange: %w", err)
		}
		return tok, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("authorization not completed: %w", ctx.Err())
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
