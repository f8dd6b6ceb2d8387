package infra

import (
	"context"

	"ratelimit-gateway/middleware/ratelimit/domain"

	"github.com/zeebo/errs"
)

// MultiStats repassa cada evento para todos os stores, mesmo se algum falhar.
type MultiStats []domain.StatsStore

// NewMultiStats ignora stores nil. Sem nenhum, retorna nil.
func NewMultiStats(stores ...domain.StatsStore) domain.StatsStore {
	var out MultiStats
	for _, s := range stores {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

func (m MultiStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var group errs.Group
	for _, s := range m {
		group.Add(s.Record(ctx, ev))
	}
	return group.Err()
}
