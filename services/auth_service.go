package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"go.airavate.in/auth/cache"
	"go.airavate.in/auth/domain"
	autherr "go.airavate.in/auth/errors"
	"go.airavate.in/auth/internal/metrics"
	"go.airavate.in/auth/internal/oidc"
)

// ProviderLocal tags results of password-based register and login.
const ProviderLocal = "local"

// UserView is the projection of a user returned to API callers.
type UserView struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Provider string `json:"provider"`
}

// LoginResult is returned by every operation that establishes a session.
type LoginResult struct {
	User         UserView `json:"user"`
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken,omitempty"`
}

// RegisterInput carries a local registration request. FirstName and
// LastName are optional; when absent the email local-part is used.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AuthService orchestrates local credential auth, OAuth2/OIDC federation,
// and session issuance.
type AuthService struct {
	users        domain.UserRepository
	hasher       PasswordHasher
	flow         OAuthFlow
	tokens       *SessionTokenService
	states       cache.StateStore
	providerName string
	requireState bool
}

// NewAuthService wires the orchestrator. providerName tags federated
// login results (e.g. "google", "authentik"). With requireState set,
// callbacks whose state was not issued by this service are rejected.
func NewAuthService(
	users domain.UserRepository,
	hasher PasswordHasher,
	flow OAuthFlow,
	tokens *SessionTokenService,
	states cache.StateStore,
	providerName string,
	requireState bool,
) *AuthService {
	return &AuthService{
		users:        users,
		hasher:       hasher,
		flow:         flow,
		tokens:       tokens,
		states:       states,
		providerName: providerName,
		requireState: requireState,
	}
}

// Register creates a local account and logs it in. Returns
// ErrDuplicateEmail when the email is already taken; the store's unique
// index converts concurrent duplicate registrations into the same error.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*LoginResult, error) {
	email := normalizeEmail(in.Email)

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, autherr.ErrDuplicateEmail
	} else if !errors.Is(err, autherr.ErrUserNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	localPart := emailLocalPart(email)
	user := &domain.User{
		Email:        email,
		Username:     localPart,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         domain.RoleUser,
	}
	if user.FirstName == "" {
		user.FirstName = localPart
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, autherr.ErrDuplicateEmail) {
			return nil, autherr.ErrDuplicateEmail
		}
		return nil, err
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	metrics.UserRegisteredTotal.Inc()
	log.Info().Str("userID", user.ID).Str("email", user.Email).Msg("User registered")

	return &LoginResult{User: s.userView(user, ProviderLocal), Token: token}, nil
}

// Login authenticates a local account. Unknown email, a federated-only
// account, and a wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, autherr.ErrUserNotFound) {
			metrics.LoginFailureTotal.Inc()
			return nil, autherr.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.HasPassword() {
		metrics.LoginFailureTotal.Inc()
		return nil, autherr.ErrInvalidCredentials
	}

	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		metrics.LoginFailureTotal.Inc()
		return nil, autherr.ErrInvalidCredentials
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		log.Warn().Err(err).Str("userID", user.ID).Msg("Failed to update last login")
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	metrics.LoginSuccessTotal.Inc()
	return &LoginResult{User: s.userView(user, ProviderLocal), Token: token}, nil
}

// GetAuthorizationURL returns the provider URL to redirect the user to.
// The generated state is stored so the callback can correlate it.
func (s *AuthService) GetAuthorizationURL(ctx context.Context) (string, error) {
	url, state, err := s.flow.AuthorizationURL(ctx, "")
	if err != nil {
		return "", err
	}
	if err := s.states.Put(ctx, state); err != nil {
		return "", err
	}
	return url, nil
}

// OAuthCallback completes a federated login: it validates the state,
// exchanges the code, fetches the federated claims, and creates or
// refreshes the matching local account. Email is the join key: a
// federated login whose email matches an existing local account attaches
// to that account.
func (s *AuthService) OAuthCallback(ctx context.Context, code, state string) (*LoginResult, error) {
	metrics.OAuthCallbackTotal.Inc()

	if s.requireState {
		ok, err := s.states.Consume(ctx, state)
		if err != nil {
			return nil, err
		}
		if !ok {
			metrics.OAuthCallbackFailureTotal.Inc()
			return nil, autherr.ErrInvalidAuthState
		}
	}

	tokenSet, err := s.flow.Exchange(ctx, code)
	if err != nil {
		metrics.OAuthCallbackFailureTotal.Inc()
		log.Warn().Err(err).Msg("OAuth code exchange failed")
		return nil, autherr.NewFlowError(err)
	}

	claims, err := s.flow.UserInfo(ctx, tokenSet.AccessToken)
	if err != nil {
		metrics.OAuthCallbackFailureTotal.Inc()
		log.Warn().Err(err).Msg("OAuth userinfo fetch failed")
		return nil, autherr.NewFlowError(err)
	}

	user, err := s.upsertFederatedUser(ctx, claims)
	if err != nil {
		metrics.OAuthCallbackFailureTotal.Inc()
		return nil, err
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	metrics.LoginSuccessTotal.Inc()
	log.Info().
		Str("userID", user.ID).
		Str("externalID", claims.Subject).
		Str("provider", s.providerName).
		Msg("Federated login completed")

	return &LoginResult{
		User:         s.userView(user, s.providerName),
		Token:        token,
		RefreshToken: tokenSet.RefreshToken,
	}, nil
}

// Refresh redeems a provider refresh token for a fresh token set.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*oidc.TokenSet, error) {
	return s.flow.Refresh(ctx, refreshToken)
}

// LogoutURL builds the provider's end-session URL.
func (s *AuthService) LogoutURL(ctx context.Context, idTokenHint string) (string, error) {
	return s.flow.LogoutURL(ctx, idTokenHint)
}

// upsertFederatedUser creates the account on first federated login, or
// refreshes the mutable profile fields from the latest claims. Optional
// fields are written only when present in the claims.
func (s *AuthService) upsertFederatedUser(ctx context.Context, claims *oidc.FederatedIdentityClaims) (*domain.User, error) {
	email := normalizeEmail(claims.Email)

	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		applyFederatedClaims(user, claims)
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return nil, err
		}
	case errors.Is(err, autherr.ErrUserNotFound):
		user = &domain.User{
			Email: email,
			Role:  domain.RoleUser,
		}
		applyFederatedClaims(user, claims)
		if user.Username == "" {
			user.Username = emailLocalPart(email)
		}
		if createErr := s.users.CreateUser(ctx, user); createErr != nil {
			if !errors.Is(createErr, autherr.ErrDuplicateEmail) {
				return nil, createErr
			}
			// Lost the race against a concurrent callback for the same
			// email; fall back to the update path.
			user, err = s.users.GetUserByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			applyFederatedClaims(user, claims)
			if err := s.users.UpdateUser(ctx, user); err != nil {
				return nil, err
			}
		}
	default:
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		log.Warn().Err(err).Str("userID", user.ID).Msg("Failed to update last login")
	}

	return user, nil
}

func applyFederatedClaims(user *domain.User, claims *oidc.FederatedIdentityClaims) {
	if claims.Subject != "" {
		user.ExternalID = claims.Subject
	}
	if claims.GivenName != "" {
		user.FirstName = claims.GivenName
	}
	if claims.FamilyName != "" {
		user.LastName = claims.FamilyName
	}
	if claims.PreferredUsername != "" {
		user.Username = claims.PreferredUsername
	}
	if claims.Picture != "" {
		user.AvatarURL = claims.Picture
	}
	if claims.EmailVerified {
		user.EmailVerified = true
	}
}

func (s *AuthService) userView(user *domain.User, provider string) UserView {
	return UserView{
		ID:       user.ID,
		Email:    user.Email,
		Name:     user.DisplayName(),
		Avatar:   user.AvatarURL,
		Provider: provider,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func emailLocalPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
