package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Service orchestrates role writes and user-role assignment. Every successful
// mutation invalidates the permission cache before returning.
type Service struct {
	repo   Repository
	cache  PermissionCache
	logger *slog.Logger
}

// NewService constructs a Service. A nil cache disables caching.
func NewService(repo Repository, cache PermissionCache, logger *slog.Logger) *Service {
	if cache == nil {
		cache = NoopCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// RoleByName fetches a role by exact name.
func (s *Service) RoleByName(ctx context.Context, name string) (Role, error) {
	return s.repo.GetRoleByName(ctx, name)
}

// UsersWithPermission lists users whose role grants permission.
func (s *Service) UsersWithPermission(ctx context.Context, permission string) ([]int64, error) {
	return s.repo.UsersWithPermission(ctx, permission)
}

// CreateRole inserts a role holding the expansion of the requested permissions.
func (s *Service) CreateRole(ctx context.Context, in CreateRoleInput) (Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Role{}, ErrRoleNameRequired
	}
	perms := Expand(in.Permissions)

	var created Role
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		taken, err := tx.RoleNameExists(ctx, name, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrRoleNameTaken
		}
		ids, err := resolvePermissionIDs(ctx, tx, perms)
		if err != nil {
			return err
		}
		role, err := tx.InsertRole(ctx, name, false)
		if err != nil {
			return err
		}
		if err := tx.ReplaceRolePermissions(ctx, role.ID, ids); err != nil {
			return err
		}
		role.Permissions = perms
		created = role
		return nil
	})
	if err != nil {
		return Role{}, err
	}
	s.invalidateAll(ctx, "create role", created.ID)
	return created, nil
}

// UpdateRole renames a role and/or replaces its permission set. System roles
// are read-only.
func (s *Service) UpdateRole(ctx context.Context, id int64, in UpdateRoleInput) (Role, error) {
	var name string
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
		if name == "" {
			return Role{}, ErrRoleNameRequired
		}
	}

	var updated Role
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockRole(ctx, id)
		if err != nil {
			return err
		}
		if current.IsSystem || IsSystemRole(current.Name) {
			return ErrSystemRole
		}
		if in.Name == nil {
			name = current.Name
		} else if name != current.Name {
			taken, err := tx.RoleNameExists(ctx, name, id)
			if err != nil {
				return err
			}
			if taken {
				return ErrRoleNameTaken
			}
		}
		if in.Permissions != nil {
			perms := Expand(*in.Permissions)
			ids, err := resolvePermissionIDs(ctx, tx, perms)
			if err != nil {
				return err
			}
			if err := tx.ReplaceRolePermissions(ctx, id, ids); err != nil {
				return err
			}
		}
		role, err := tx.SaveRole(ctx, id, name)
		if err != nil {
			return err
		}
		updated = role
		return nil
	})
	if err != nil {
		return Role{}, err
	}
	s.invalidateAll(ctx, "update role", id)
	return s.repo.GetRole(ctx, updated.ID)
}

// DeleteRole detaches the role's users and permissions, then removes it, in
// one transaction. Affected users are left with no role.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	var detached int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockRole(ctx, id)
		if err != nil {
			return err
		}
		if current.IsSystem || IsSystemRole(current.Name) {
			return ErrSystemRole
		}
		detached, err = tx.DetachRoleUsers(ctx, id)
		if err != nil {
			return fmt.Errorf("detach role users: %w", err)
		}
		return tx.DeleteRole(ctx, id)
	})
	if err != nil {
		return err
	}
	s.invalidateAll(ctx, "delete role", id)
	s.logger.Info("role deleted", slog.Int64("role_id", id), slog.Int64("detached_users", detached))
	return nil
}

// AssignRole replaces the user's role with the named one and writes the
// coarse label. Concurrent calls for the same user serialize on the user row.
func (s *Service) AssignRole(ctx context.Context, userID int64, roleName string) (Role, error) {
	roleName = strings.TrimSpace(roleName)
	if roleName == "" {
		return Role{}, ErrRoleNotFound
	}
	role, err := s.repo.GetRoleByName(ctx, roleName)
	if err != nil {
		return Role{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		if err := tx.ReplaceUserRole(ctx, userID, role.ID); err != nil {
			return err
		}
		return tx.SetUserRoleLabel(ctx, userID, LabelFor(role.Name))
	})
	if err != nil {
		return Role{}, err
	}
	s.ForgetUser(ctx, userID)
	return role, nil
}

// CreateAccount inserts a user already holding roleName. The row, the
// assignment and the label commit together or not at all.
func (s *Service) CreateAccount(ctx context.Context, acct Account, roleName string) (int64, error) {
	role, err := s.repo.GetRoleByName(ctx, strings.TrimSpace(roleName))
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.LockRole(ctx, role.ID); err != nil {
			return err
		}
		newID, err := tx.InsertAccount(ctx, acct, LabelFor(role.Name))
		if err != nil {
			return err
		}
		id = newID
		return tx.ReplaceUserRole(ctx, newID, role.ID)
	})
	if err != nil {
		return 0, err
	}
	s.ForgetUser(ctx, id)
	return id, nil
}

// ForgetUser drops the user's cached permission set.
func (s *Service) ForgetUser(ctx context.Context, userID int64) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Error("rbac cache invalidate", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

func (s *Service) invalidateAll(ctx context.Context, op string, roleID int64) {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.Error("rbac cache invalidate all", slog.String("op", op), slog.Int64("role_id", roleID), slog.Any("error", err))
	}
}

func resolvePermissionIDs(ctx context.Context, tx TxRepository, names []string) ([]int64, error) {
	known, err := tx.PermissionIDs(ctx, names)
	if err != nil {
		return nil, err
	}
	var missing []string
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		id, ok := known[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		ids = append(ids, id)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &UnknownPermissionsError{Names: missing}
	}
	return ids, nil
}
