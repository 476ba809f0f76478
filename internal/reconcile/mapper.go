package reconcile

import (
	"context"
	"fmt"

	"github.com/mnshuhailey/ppa-sap/internal/source"
)

// Mapper writes resolved updates back to the business tables.
type Mapper struct {
	repo source.Repository
}

func NewMapper(repo source.Repository) *Mapper {
	return &Mapper{repo: repo}
}

// Apply checks the target exists and then updates it in one statement.
// A missing target is reported as source.ErrNotFound.
func (m *Mapper) Apply(ctx context.Context, u Update) error {
	ok, err := m.repo.Exists(ctx, u.Entity, u.Key)
	if err != nil {
		return fmt.Errorf("checking %s %s: %w", u.Entity, u.Key, err)
	}

	if !ok {
		return fmt.Errorf("%s %s: %w", u.Entity, u.Key, source.ErrNotFound)
	}

	if err := m.repo.Update(ctx, u.Entity, u.Key, u.Fields); err != nil {
		return fmt.Errorf("applying %s update to %s: %w", u.Rule, u.Key, err)
	}

	return nil
}
