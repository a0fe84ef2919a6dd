package rbac

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// Recorder receives authorization telemetry.
type Recorder interface {
	ObserveDecision(permission string, allowed bool)
	ObserveCacheLookup(hit bool)
}

// Evaluator answers "may user U do P" from the user's single assigned role.
// It is the only reader of authorization state; the coarse user label is
// never consulted.
type Evaluator struct {
	repo     Repository
	cache    PermissionCache
	logger   *slog.Logger
	recorder Recorder
	loads    singleflight.Group
}

// NewEvaluator constructs an Evaluator. cache and recorder may be nil.
func NewEvaluator(repo Repository, cache PermissionCache, logger *slog.Logger, recorder Recorder) *Evaluator {
	if cache == nil {
		cache = NoopCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{repo: repo, cache: cache, logger: logger, recorder: recorder}
}

// EffectivePermissions returns the permission names granted by the user's
// role, or an empty set when the user has none.
func (e *Evaluator) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	entry, err := e.cache.Get(ctx, userID)
	if err != nil {
		e.logger.Warn("rbac cache get", slog.Int64("user_id", userID), slog.Any("error", err))
		entry = CacheEntry{UserID: userID}
	}
	if entry.Found {
		e.observeLookup(true)
		return clonePermissions(entry.Permissions), nil
	}
	e.observeLookup(false)

	stamp := entry.Stamp
	load := func(ctx context.Context) ([]string, error) {
		role, ok, err := e.assignedRole(ctx, userID)
		if err != nil {
			return nil, err
		}
		perms := []string{}
		if ok {
			perms = clonePermissions(role.Permissions)
		}
		if stamp != "" {
			if err := e.cache.Put(ctx, CacheEntry{UserID: userID, Permissions: perms, Found: true, Stamp: stamp}); err != nil {
				e.logger.Warn("rbac cache put", slog.Int64("user_id", userID), slog.Any("error", err))
			}
		}
		return perms, nil
	}
	if stamp == "" {
		return load(ctx)
	}

	key := strconv.FormatInt(userID, 10) + "@" + stamp
	detached := context.WithoutCancel(ctx)
	ch := e.loads.DoChan(key, func() (interface{}, error) {
		return load(detached)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clonePermissions(res.Val.([]string)), nil
	}
}

// HasPermission reports exact membership of name in the user's set.
func (e *Evaluator) HasPermission(ctx context.Context, userID int64, name string) (bool, error) {
	perms, err := e.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == name {
			return true, nil
		}
	}
	return false, nil
}

// HasRole reports whether the user's assigned role is exactly roleName.
func (e *Evaluator) HasRole(ctx context.Context, userID int64, roleName string) (bool, error) {
	role, ok, err := e.assignedRole(ctx, userID)
	if err != nil || !ok {
		return false, err
	}
	return role.Name == roleName, nil
}

// AssignedRole returns the user's role, if any.
func (e *Evaluator) AssignedRole(ctx context.Context, userID int64) (Role, bool, error) {
	return e.assignedRole(ctx, userID)
}

// assignedRole treats a role removed between the assignment lookup and the
// role read as no role.
func (e *Evaluator) assignedRole(ctx context.Context, userID int64) (Role, bool, error) {
	role, ok, err := e.repo.AssignedRole(ctx, userID)
	if errors.Is(err, ErrRoleNotFound) {
		e.logger.Info("rbac assigned role vanished", slog.Int64("user_id", userID))
		return Role{}, false, nil
	}
	return role, ok, err
}

// Authorize returns nil when the user holds name and a *PermissionDeniedError
// otherwise. Evaluation failures are returned as-is and must also block.
func (e *Evaluator) Authorize(ctx context.Context, userID int64, name string) error {
	ok, err := e.HasPermission(ctx, userID, name)
	if err != nil {
		e.logger.Error("rbac authorize", slog.Int64("user_id", userID), slog.String("permission", name), slog.Any("error", err))
		return err
	}
	e.observeDecision(name, ok)
	if !ok {
		return &PermissionDeniedError{UserID: userID, Permission: name}
	}
	return nil
}

func (e *Evaluator) observeDecision(permission string, allowed bool) {
	if e.recorder != nil {
		e.recorder.ObserveDecision(permission, allowed)
	}
}

func (e *Evaluator) observeLookup(hit bool) {
	if e.recorder != nil {
		e.recorder.ObserveCacheLookup(hit)
	}
}
