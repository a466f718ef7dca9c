package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"storefront-orders/internal/store"
	"storefront-orders/internal/util"

	"go.uber.org/zap"
)

// DefaultRole is assigned when a user has no profile row
const DefaultRole = "customer"

// GatewayClient verifies tokens against the hosted auth provider's user
// endpoint and resolves roles from the storefront profiles.
type GatewayClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	roles      RoleLookup
	logger     *zap.Logger
}

// NewGatewayClient creates a new gateway client
func NewGatewayClient(baseURL, apiKey string, roles RoleLookup) *GatewayClient {
	return &GatewayClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		roles:      roles,
		logger:     util.GetLogger(),
	}
}

type gatewayUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Authenticate resolves token to an identity
func (g *GatewayClient) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	ctx, span := util.StartSpan(ctx, "GatewayClient.Authenticate")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if g.apiKey != "" {
		req.Header.Set("apikey", g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthenticated
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("auth gateway returned status %d", resp.StatusCode)
	}

	var user gatewayUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode auth gateway response: %w", err)
	}
	if user.ID == "" {
		return nil, ErrUnauthenticated
	}

	role, err := g.roles.GetUserRole(ctx, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		role = DefaultRole
	} else if err != nil {
		return nil, fmt.Errorf("failed to resolve role: %w", err)
	}

	g.logger.Debug("Caller authenticated", zap.String("user_id", user.ID), zap.String("role", role))
	return &Identity{UserID: user.ID, Email: user.Email, Role: role}, nil
}
