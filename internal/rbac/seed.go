package rbac

import (
	"context"
	"log/slog"
	"sort"

	"github.com/hrflow/hrflow/internal/shared"
)

// seedCategories tags permissions whose subject spans more than one word.
var seedCategories = map[string]string{
	shared.PermLeaveTypesView:  "leave types",
	shared.PermLeaveTypeCreate: "leave types",
	shared.PermLeaveTypeEdit:   "leave types",
	shared.PermLeaveTypeDelete: "leave types",
}

// Seed upserts the permission catalog and the system roles with their
// default permission sets. Running it twice leaves the same state.
func (s *Service) Seed(ctx context.Context) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, name := range shared.CoreScopes() {
			category, ok := seedCategories[name]
			if !ok {
				category = CategoryForName(name)
			}
			if _, err := tx.UpsertPermission(ctx, name, category); err != nil {
				return err
			}
		}
		defaults := shared.SystemRoleScopes()
		names := make([]string, 0, len(defaults))
		for name := range defaults {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			role, err := tx.EnsureRole(ctx, name, true)
			if err != nil {
				return err
			}
			ids, err := resolvePermissionIDs(ctx, tx, Expand(defaults[name]))
			if err != nil {
				return err
			}
			if err := tx.ReplaceRolePermissions(ctx, role.ID, ids); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidateAll(ctx, "seed", 0)
	s.logger.Info("rbac seeded", slog.Int("permissions", len(shared.CoreScopes())))
	return nil
}
