package rbac

import (
	"context"
	"sort"
	"strings"
)

const otherCategory = "other"

// Catalog exposes the read-only permission list.
type Catalog struct {
	repo Repository
}

// NewCatalog constructs a Catalog.
func NewCatalog(repo Repository) *Catalog {
	return &Catalog{repo: repo}
}

// ListAll returns every permission ordered by name.
func (c *Catalog) ListAll(ctx context.Context) ([]Permission, error) {
	perms, err := c.repo.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Name < perms[j].Name })
	for i := range perms {
		perms[i].Category = Category(perms[i])
	}
	return perms, nil
}

// GroupedByCategory groups the catalog by category, each group ordered by name.
func (c *Catalog) GroupedByCategory(ctx context.Context) (map[string][]Permission, error) {
	perms, err := c.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	groups := make(map[string][]Permission)
	for _, p := range perms {
		groups[p.Category] = append(groups[p.Category], p)
	}
	return groups, nil
}

// Category returns the explicit tag when present, else the second word of the
// name ("approve leave" -> "leave"), else "other".
func Category(p Permission) string {
	if tag := strings.TrimSpace(p.Category); tag != "" {
		return tag
	}
	return CategoryForName(p.Name)
}

// CategoryForName derives a category from the "<verb> <subject>" convention.
// Only the second word counts, so "view leave types" files under "leave".
func CategoryForName(name string) string {
	fields := strings.Fields(name)
	if len(fields) < 2 {
		return otherCategory
	}
	return fields[1]
}
