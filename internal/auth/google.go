package auth

import (
	"context"
	"fmt"

	"google.golang.org/api/idtoken"
)

// GoogleProfile is the subset of ID-token claims the service cares about.
type GoogleProfile struct {
	Email string
	Name  string
}

// GoogleVerifier validates Google sign-in ID tokens against the
// configured OAuth client ID.
type GoogleVerifier struct {
	clientID string
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID}
}

func (v *GoogleVerifier) Verify(ctx context.Context, rawToken string) (*GoogleProfile, error) {
	if v.clientID == "" {
		return nil, fmt.Errorf("google sign-in is not configured")
	}

	payload, err := idtoken.Validate(ctx, rawToken, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to validate google id token: %w", err)
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, fmt.Errorf("google id token has no email claim")
	}
	name, _ := payload.Claims["name"].(string)

	return &GoogleProfile{Email: email, Name: name}, nil
}
