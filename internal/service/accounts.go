package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/journeyvault/internal/model"
	"github.com/and161185/journeyvault/internal/repository"
	"github.com/and161185/journeyvault/internal/validation"
)

// Account is a registered user together with a fresh access token.
type Account struct {
	ID     uuid.UUID
	Email  string
	Tokens model.Tokens
}

// AccountService bootstraps users on self-hosted deployments, where no
// external auth service issues tokens.
type AccountService interface {
	// Register creates an account for email and issues a token for it.
	Register(ctx context.Context, email string) (Account, error)
	// IssueToken issues a new token for an existing account.
	IssueToken(ctx context.Context, email string) (Account, error)
}

type AccountServiceImpl struct {
	accounts  repository.AccountRepository
	signKey   []byte
	accessTTL time.Duration
	now       func() time.Time
}

// NewAccountService constructs AccountService with required dependencies.
func NewAccountService(accounts repository.AccountRepository, signKey []byte, accessTTL time.Duration) *AccountServiceImpl {
	return &AccountServiceImpl{accounts: accounts, signKey: signKey, accessTTL: accessTTL, now: time.Now}
}

// WithClock replaces the time source.
func (s *AccountServiceImpl) WithClock(now func() time.Time) *AccountServiceImpl {
	s.now = now
	return s
}

func cleanEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.Var("email", email, "required,email"); err != nil {
		return "", err
	}
	return email, nil
}

// Register creates the account and signs a token for it.
func (s *AccountServiceImpl) Register(ctx context.Context, email string) (Account, error) {
	email, err := cleanEmail(email)
	if err != nil {
		return Account{}, err
	}
	if len(s.signKey) == 0 {
		return Account{}, errors.New("no signing key configured")
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return Account{}, err
	}
	if err := s.accounts.Register(ctx, uid, email); err != nil {
		return Account{}, err
	}
	tokens, err := s.issueAccessToken(uid)
	if err != nil {
		return Account{}, err
	}
	return Account{ID: uid, Email: email, Tokens: tokens}, nil
}

// IssueToken signs a token for an existing account.
func (s *AccountServiceImpl) IssueToken(ctx context.Context, email string) (Account, error) {
	email, err := cleanEmail(email)
	if err != nil {
		return Account{}, err
	}
	if len(s.signKey) == 0 {
		return Account{}, errors.New("no signing key configured")
	}
	uid, err := s.accounts.IDByEmail(ctx, email)
	if err != nil {
		return Account{}, err
	}
	tokens, err := s.issueAccessToken(uid)
	if err != nil {
		return Account{}, err
	}
	return Account{ID: uid, Email: email, Tokens: tokens}, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AccountServiceImpl) issueAccessToken(userID uuid.UUID) (model.Tokens, error) {
	now := s.now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return model.Tokens{AccessToken: signed, ExpiresAt: exp}, err
}
