// Package recovery runs the startup steps that bring durable state back to a
// consistent point after a restart or crash.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/store"
)

// Recoverable is a component that restores its state at startup.
type Recoverable interface {
	RecoverState(ctx context.Context, registry *RecoveryRegistry) error
}

// RecoverFunc adapts a function to Recoverable.
type RecoverFunc func(ctx context.Context, registry *RecoveryRegistry) error

// RecoverState implements Recoverable.
func (f RecoverFunc) RecoverState(ctx context.Context, registry *RecoveryRegistry) error {
	return f(ctx, registry)
}

// RecoveryRegistry gives recoverables access to shared services.
type RecoveryRegistry struct {
	store store.Store
	now   func() time.Time
}

// NewRecoveryRegistry creates a registry over st.
func NewRecoveryRegistry(st store.Store, now func() time.Time) *RecoveryRegistry {
	if now == nil {
		now = time.Now
	}
	return &RecoveryRegistry{store: st, now: now}
}

// GetStore returns the store.
func (r *RecoveryRegistry) GetStore() store.Store {
	return r.store
}

// Now returns the registry clock.
func (r *RecoveryRegistry) Now() time.Time {
	return r.now()
}

type namedRecoverable struct {
	name string
	r    Recoverable
}

// RecoveryManager runs registered recoverables in registration order.
type RecoveryManager struct {
	registry     *RecoveryRegistry
	recoverables []namedRecoverable
}

// NewRecoveryManager creates a RecoveryManager.
func NewRecoveryManager(st store.Store, now func() time.Time) *RecoveryManager {
	return &RecoveryManager{registry: NewRecoveryRegistry(st, now)}
}

// RegisterRecoverable appends r under name.
func (rm *RecoveryManager) RegisterRecoverable(name string, r Recoverable) {
	rm.recoverables = append(rm.recoverables, namedRecoverable{name: name, r: r})
}

// RecoverAll runs every recoverable. A failure does not stop the remaining
// steps; all failures are joined into the returned error.
func (rm *RecoveryManager) RecoverAll(ctx context.Context) error {
	slog.Info("RecoveryManager.RecoverAll: starting", "components", len(rm.recoverables))
	var errs []error
	for _, nr := range rm.recoverables {
		if err := nr.r.RecoverState(ctx, rm.registry); err != nil {
			slog.Error("RecoveryManager.RecoverAll: component failed", "component", nr.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", nr.name, err))
			continue
		}
		slog.Debug("RecoveryManager.RecoverAll: component recovered", "component", nr.name)
	}
	slog.Info("RecoveryManager.RecoverAll: completed", "recovered", len(rm.recoverables)-len(errs), "errors", len(errs))
	return errors.Join(errs...)
}

// GetRegistry returns the registry.
func (rm *RecoveryManager) GetRegistry() *RecoveryRegistry {
	return rm.registry
}
