package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/journeyvault/internal/errs"
)

// IdentityRepo resolves accounts through database functions exposed as RPCs.
type IdentityRepo struct{ c restClient }

// NewIdentityRepo constructs an identity repository.
func NewIdentityRepo(c restClient) *IdentityRepo { return &IdentityRepo{c: c} }

// rpcString calls fn and decodes a scalar text result. A JSON null means no match.
func (r *IdentityRepo) rpcString(ctx context.Context, fn string, body any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw := strings.TrimSpace(r.c.Rpc(fn, "", body))
	if raw == "" || raw == "null" {
		return "", errs.ErrNotFound
	}
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return "", fmt.Errorf("rpc %s: unexpected response %.200q", fn, raw)
	}
	if s == "" {
		return "", errs.ErrNotFound
	}
	return s, nil
}

// IDByEmail looks an account up by email.
func (r *IdentityRepo) IDByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	s, err := r.rpcString(ctx, "get_user_id_by_email", map[string]string{
		"email": strings.ToLower(strings.TrimSpace(email)),
	})
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.FromString(s)
}

// EmailByID returns the email of an account.
func (r *IdentityRepo) EmailByID(ctx context.Context, id uuid.UUID) (string, error) {
	return r.rpcString(ctx, "get_email_by_user_id", map[string]string{"user_id": id.String()})
}
