package infra

import (
	"context"
	"errors"

	"rest-gateway/rest/router/domain"
)

// MultiStatsStore repassa cada evento para todos os stores; erros são juntados.
type MultiStatsStore []domain.StatsStore

func (m MultiStatsStore) Record(ctx context.Context, ev domain.ExchangeEvent) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
