package handlers

import (
	"context"
	"time"

	"github.com/nes_dashboard/backend/internal/db"
	"github.com/nes_dashboard/backend/internal/export"
	"github.com/nes_dashboard/backend/internal/filter"
	"github.com/nes_dashboard/backend/internal/query"
	"github.com/nes_dashboard/backend/internal/service"
)

// Dataset binds one dashboard's table, filter layout and session to the
// generic dashboard handlers.
type Dataset struct {
	Name        string
	Table       string
	Convention  filter.Convention
	Dimensions  []query.Dimension
	DateColumn  string
	MonthColumn string
	Session     *service.Session

	Records func(ctx context.Context, clause string, page db.Page) (any, error)
	Export  func(ctx context.Context, clause string) (export.Table, error)
}

func TicketDataset(store *db.Store, session *service.Session, loc *time.Location) Dataset {
	return Dataset{
		Name:        service.DatasetTickets,
		Table:       db.TicketsTable.Name,
		Convention:  filter.EmptyMeansAll,
		Dimensions:  query.TicketDimensions,
		DateColumn:  query.TicketDateColumn,
		MonthColumn: query.TicketMonthColumn,
		Session:     session,
		Records: func(ctx context.Context, clause string, page db.Page) (any, error) {
			return store.QueryTickets(ctx, clause, page)
		},
		Export: func(ctx context.Context, clause string) (export.Table, error) {
			rows, err := store.QueryTickets(ctx, clause, db.Page{})
			if err != nil {
				return export.Table{}, err
			}
			return export.Tickets(rows, loc), nil
		},
	}
}

func ParticipationDataset(store *db.Store, session *service.Session, loc *time.Location) Dataset {
	return Dataset{
		Name:        service.DatasetParticipation,
		Table:       db.ParticipationTable.Name,
		Convention:  filter.SentinelAll,
		Dimensions:  query.ParticipationDimensions,
		DateColumn:  query.ParticipationDateColumn,
		MonthColumn: query.ParticipationMonthColumn,
		Session:     session,
		Records: func(ctx context.Context, clause string, page db.Page) (any, error) {
			return store.QueryParticipation(ctx, clause, page)
		},
		Export: func(ctx context.Context, clause string) (export.Table, error) {
			rows, err := store.QueryParticipation(ctx, clause, db.Page{})
			if err != nil {
				return export.Table{}, err
			}
			return export.Participation(rows, loc), nil
		},
	}
}
