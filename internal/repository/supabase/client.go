// Package supabase implements the repository interfaces over Supabase's
// PostgREST API.
package supabase

import (
	"errors"
	"strings"

	"github.com/supabase-community/postgrest-go"

	"github.com/and161185/journeyvault/internal/errs"
)

// restClient is satisfied by *supabase.Client and *postgrest.Client.
type restClient interface {
	From(table string) *postgrest.QueryBuilder
	Rpc(name, count string, rpcBody any) string
}

// mapErr folds PostgREST error codes into sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "23505"):
		return errors.Join(errs.ErrAlreadyExists, err)
	case strings.Contains(msg, "PGRST116"):
		return errors.Join(errs.ErrNotFound, err)
	}
	return err
}
