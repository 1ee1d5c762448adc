// Package otel bridges the engine's atomic counters to an OpenTelemetry
// meter as observable counters.
package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	authcore "github.com/authcore-io/authcore"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

type counterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

var counterDefs = []counterDef{
	{authcore.MetricLoginSuccess, "authcore_login_success_total", "Successful logins."},
	{authcore.MetricLoginFailure, "authcore_login_failure_total", "Logins rejected for bad credentials."},
	{authcore.MetricLoginRateLimited, "authcore_login_rate_limited_total", "Logins denied by the rate limiter."},
	{authcore.MetricLoginLockedOut, "authcore_login_locked_out_total", "Logins denied by the lockout guard."},
	{authcore.MetricSignupSuccess, "authcore_signup_success_total", "Successful signups."},
	{authcore.MetricSignupDuplicate, "authcore_signup_duplicate_total", "Signups rejected for an existing email."},
	{authcore.MetricRefreshSuccess, "authcore_refresh_success_total", "Successful refresh rotations."},
	{authcore.MetricRefreshFailure, "authcore_refresh_failure_total", "Refreshes rejected for an invalid token."},
	{authcore.MetricRefreshRateLimited, "authcore_refresh_rate_limited_total", "Refreshes denied by the rate limiter."},
	{authcore.MetricRefreshLockedOut, "authcore_refresh_locked_out_total", "Refreshes denied by the lockout guard."},
	{authcore.MetricRevokedTokenReuse, "authcore_revoked_token_reuse_total", "Refresh attempts presenting a revoked token."},
	{authcore.MetricTokenRevoked, "authcore_token_revoked_total", "Tokens revoked during rotation."},
	{authcore.MetricLogout, "authcore_logout_total", "Single-token logouts."},
	{authcore.MetricLogoutAll, "authcore_logout_all_total", "Logout-all operations."},
	{authcore.MetricPasswordResetRequest, "authcore_password_reset_request_total", "Password reset challenges issued."},
	{authcore.MetricPasswordResetConfirm, "authcore_password_reset_confirm_total", "Password resets completed."},
	{authcore.MetricVerificationRequest, "authcore_verification_request_total", "Account verification challenges issued."},
	{authcore.MetricVerificationConfirm, "authcore_verification_confirm_total", "Account verifications completed."},
	{authcore.MetricOAuthLoginSuccess, "authcore_oauth_login_success_total", "Successful OAuth logins."},
	{authcore.MetricOAuthLoginFailure, "authcore_oauth_login_failure_total", "Failed OAuth logins."},
}

type observedCounter struct {
	id         authcore.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter registers observable counters on a meter and feeds them from
// engine snapshots on each collection cycle.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observedCounter
	auditDropped metric.Int64ObservableCounter
}

// NewExporter wires the engine's counters to meter.
func NewExporter(meter metric.Meter, engine *authcore.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource is NewExporter for any snapshot source, which lets
// tests feed fixed snapshots.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &Exporter{
		source:   source,
		counters: make([]observedCounter, 0, len(counterDefs)),
	}

	observables := make([]metric.Observable, 0, len(counterDefs)+1)

	for _, def := range counterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	auditDropped, err := meter.Int64ObservableCounter(
		"authcore_audit_dropped_total",
		metric.WithDescription("Dropped audit events due to dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.source.MetricsSnapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
		}
		observer.ObserveInt64(exporter.auditDropped, int64(exporter.source.AuditDropped()))
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
