package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// Auth modes accepted by the remote endpoint.
const (
	ModeSignIn = "signin"
	ModeSignUp = "signup"
)

// ErrAuthMisconfigured marks the remote side answering with a bare "Accepted"
// body, which means the automation scenario is missing its response module.
// It is a distinct diagnostic, not a generic failure.
var ErrAuthMisconfigured = errors.New("auth webhook returned Accepted: the scenario is missing a response module that returns JSON with a mode field")

// AuthError is a remote business error mapped from the endpoint's status code
// or error discriminator.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// Known discriminators and their user-facing messages.
const (
	authCodeWrongPassword   = "wrong_password"
	authCodeAccountNotFound = "account_not_found"
	authCodeAccountExists   = "account_exists"
)

var authMessages = map[string]string{
	authCodeWrongPassword:   "Wrong password",
	authCodeAccountNotFound: "Account not found — go to signup",
	authCodeAccountExists:   "Account already exists — go to signin",
}

// Credentials carries the sign-in/sign-up form. Name and Phone are only used
// for signup.
type Credentials struct {
	Mode     string
	Name     string
	Email    string
	Phone    string
	Password string
}

type authResponse struct {
	Mode  string `json:"mode"`
	Error string `json:"error"`
}

// Authenticate posts the credential form and maps the response. On success it
// returns the mode the remote side confirmed.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	if c.authURL == "" {
		return "", errors.New("webhook: auth url is not configured")
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	fields := map[string]string{
		"Email":    creds.Email,
		"Password": creds.Password,
	}
	if creds.Mode == ModeSignUp {
		fields["Name"] = creds.Name
		fields["Phone"] = creds.Phone
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return "", fmt.Errorf("webhook: write auth field: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("webhook: finalize auth form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, &buf)
	if err != nil {
		return "", fmt.Errorf("webhook: build auth request: %w", err)
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("webhook: read auth response: %w", err)
	}
	body := strings.TrimSpace(string(raw))
	if body == "Accepted" {
		return "", ErrAuthMisconfigured
	}

	var decoded authResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("webhook: invalid auth response: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		switch decoded.Mode {
		case ModeSignIn, ModeSignUp:
			return decoded.Mode, nil
		}
	}
	return "", mapAuthError(resp.StatusCode, decoded.Error)
}

func mapAuthError(status int, code string) error {
	switch {
	case status == http.StatusUnauthorized || code == authCodeWrongPassword:
		return &AuthError{Code: authCodeWrongPassword, Message: authMessages[authCodeWrongPassword]}
	case status == http.StatusNotFound || code == authCodeAccountNotFound:
		return &AuthError{Code: authCodeAccountNotFound, Message: authMessages[authCodeAccountNotFound]}
	case status == http.StatusConflict || code == authCodeAccountExists:
		return &AuthError{Code: authCodeAccountExists, Message: authMessages[authCodeAccountExists]}
	case code != "":
		return &AuthError{Code: code, Message: code}
	default:
		return &AuthError{Code: "unknown", Message: fmt.Sprintf("unexpected auth response (status %d)", status)}
	}
}
