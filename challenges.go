package authcore

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"github.com/authcore-io/authcore/internal/stores"
	"github.com/authcore-io/authcore/password"
)

const (
	purposePasswordReset = "password_reset"
	purposeVerifyAccount = "verify_account"
)

// RequestPasswordReset issues a one-shot reset challenge and hands it to the
// notifier. An unknown email returns nil without sending anything, so the
// endpoint cannot be used to enumerate accounts.
func (e *Engine) RequestPasswordReset(ctx context.Context, email, ip string) error {
	if e.roles == nil {
		return ErrRoleStoreRequired
	}
	if e.notifier == nil {
		return ErrNotifierRequired
	}

	if !e.allowRate(ctx, counterKey("password_reset", "email", email)) ||
		(ip != "" && !e.allowRate(ctx, counterKey("password_reset", "ip", ip))) {
		return ErrRateLimited
	}

	user, err := e.roles.FindByEmail(ctx, email)
	if err != nil {
		log.Printf("authcore: role store lookup failed: %v", err)
		return ErrStoreUnavailable
	}
	if user == nil {
		e.emitAudit("password_reset_request", email, ip, false, nil)
		return nil
	}

	challenge := uuid.NewString()
	if err := e.challenges.Save(ctx, purposePasswordReset, challenge, user.Email, e.config.PasswordReset.TTL); err != nil {
		log.Printf("authcore: challenge save failed: %v", err)
		return ErrStoreUnavailable
	}

	if err := e.notifier.SendPasswordReset(ctx, user.Email, challenge); err != nil {
		log.Printf("authcore: password reset notification failed: %v", err)
		return err
	}

	e.metrics.inc(MetricPasswordResetRequest)
	e.emitAudit("password_reset_request", email, ip, true, nil)
	return nil
}

// ConfirmPasswordReset consumes a reset challenge, stores the new password
// hash, revokes every outstanding refresh token, and clears the email's
// login lockout counter. The challenge is burned even if a later step
// fails; a retry needs a fresh one.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, challenge, newPassword string) error {
	if e.roles == nil {
		return ErrRoleStoreRequired
	}

	email, err := e.challenges.Consume(ctx, purposePasswordReset, challenge)
	if err != nil {
		if errors.Is(err, stores.ErrChallengeNotFound) {
			return ErrChallengeInvalid
		}
		log.Printf("authcore: challenge consume failed: %v", err)
		return ErrStoreUnavailable
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, password.ErrTooShort) {
			return ErrWeakPassword
		}
		return err
	}

	if err := e.roles.UpdatePassword(ctx, email, hash); err != nil {
		log.Printf("authcore: password update failed: %v", err)
		return ErrStoreUnavailable
	}

	// A reset proves control of the mailbox: outstanding sessions are
	// assumed compromised and cut, and the lockout record cleared so the
	// owner can sign in immediately.
	if _, err := e.tokens.RevokeAllForUser(ctx, email); err != nil {
		log.Printf("authcore: post-reset revocation failed: %v", err)
		return ErrStoreUnavailable
	}
	if err := e.lockout.Reset(ctx, counterKey("login_lock", "email", email)); err != nil {
		log.Printf("authcore: lockout reset failed: %v", err)
	}

	e.metrics.inc(MetricPasswordResetConfirm)
	e.emitAudit("password_reset_confirm", email, "", true, nil)
	return nil
}

// RequestAccountVerification issues a one-shot verification challenge for
// the email and hands it to the notifier. Unknown or already verified
// accounts return nil without sending.
func (e *Engine) RequestAccountVerification(ctx context.Context, email, ip string) error {
	if e.roles == nil {
		return ErrRoleStoreRequired
	}
	if e.notifier == nil {
		return ErrNotifierRequired
	}

	if !e.allowRate(ctx, counterKey("verify_account", "email", email)) ||
		(ip != "" && !e.allowRate(ctx, counterKey("verify_account", "ip", ip))) {
		return ErrRateLimited
	}

	user, err := e.roles.FindByEmail(ctx, email)
	if err != nil {
		log.Printf("authcore: role store lookup failed: %v", err)
		return ErrStoreUnavailable
	}
	if user == nil || user.Verified {
		return nil
	}

	challenge := uuid.NewString()
	if err := e.challenges.Save(ctx, purposeVerifyAccount, challenge, user.Email, e.config.Verification.TTL); err != nil {
		log.Printf("authcore: challenge save failed: %v", err)
		return ErrStoreUnavailable
	}

	if err := e.notifier.SendAccountVerification(ctx, user.Email, challenge); err != nil {
		log.Printf("authcore: verification notification failed: %v", err)
		return err
	}

	e.metrics.inc(MetricVerificationRequest)
	e.emitAudit("verification_request", email, ip, true, nil)
	return nil
}

// ConfirmAccountVerification consumes a verification challenge and marks
// the account verified.
func (e *Engine) ConfirmAccountVerification(ctx context.Context, challenge string) error {
	if e.roles == nil {
		return ErrRoleStoreRequired
	}

	email, err := e.challenges.Consume(ctx, purposeVerifyAccount, challenge)
	if err != nil {
		if errors.Is(err, stores.ErrChallengeNotFound) {
			return ErrChallengeInvalid
		}
		log.Printf("authcore: challenge consume failed: %v", err)
		return ErrStoreUnavailable
	}

	if err := e.roles.SetVerified(ctx, email); err != nil {
		log.Printf("authcore: verification update failed: %v", err)
		return ErrStoreUnavailable
	}

	e.metrics.inc(MetricVerificationConfirm)
	e.emitAudit("verification_confirm", email, "", true, nil)
	return nil
}
