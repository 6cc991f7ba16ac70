// Package auth resolves login credentials against the account stores.
package auth

import (
	"context"
	"errors"
	"strings"

	"structura/apperr"
	"structura/logger"
	"structura/metrics"
	"structura/models"
	"structura/vault"
)

// Verifier checks a candidate password against a stored hash.
type Verifier interface {
	Verify(candidate, stored string) bool
	BurnVerify(candidate string)
}

// Resolver probes its stores in order. The first store holding the email
// decides the outcome; an email shadowed in a later store is never reached.
type Resolver struct {
	stores   []AccountStore
	verifier Verifier
}

func NewResolver(verifier Verifier, stores ...AccountStore) *Resolver {
	if verifier == nil {
		verifier = vault.Default()
	}
	return &Resolver{stores: stores, verifier: verifier}
}

// Authenticate returns the identity for email/password. It fails with
// apperr.ErrInvalidCredentials when the first matching account rejects the
// password and with apperr.ErrAuthNotFound when no store knows the email.
func (r *Resolver) Authenticate(ctx context.Context, email, password string) (*models.Identity, error) {
	log := logger.FromContext(ctx)
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		verr := &apperr.ValidationError{Fields: map[string]string{}}
		if email == "" {
			verr.Fields["email"] = "is required"
		}
		if password == "" {
			verr.Fields["password"] = "is required"
		}
		return nil, verr
	}

	for _, store := range r.stores {
		account, err := store.FindByEmail(ctx, email)
		if errors.Is(err, apperr.ErrAuthNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !r.verifier.Verify(password, account.Secret()) {
			metrics.LoginAttempts.WithLabelValues("invalid_password", string(store.Kind())).Inc()
			log.Info("Login rejected", "reason", "invalid password", "kind", store.Kind(), "account_id", account.Ref().ID)
			return nil, apperr.ErrInvalidCredentials
		}
		identity := account.Identity()
		metrics.LoginAttempts.WithLabelValues("success", string(store.Kind())).Inc()
		log.Info("Login succeeded", "kind", identity.Kind, "account_id", identity.ID)
		return &identity, nil
	}

	r.verifier.BurnVerify(password)
	metrics.LoginAttempts.WithLabelValues("unknown_email", "").Inc()
	log.Info("Login rejected", "reason", "unknown email")
	return nil, apperr.ErrAuthNotFound
}
