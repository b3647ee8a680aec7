package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/devgateway/dozer-model/internal/adapters/db/sqldb"
	"github.com/devgateway/dozer-model/internal/adapters/orm"
	"github.com/devgateway/dozer-model/internal/application"
	"github.com/devgateway/dozer-model/internal/config"
	"github.com/devgateway/dozer-model/internal/domain"
)

// runDemo walks one order through a full detach/reattach cycle in-process.
func runDemo(ctx context.Context, cfg config.Config, logger *zap.Logger, orderID uint) error {
	db, err := sqldb.Open(cfg.DB, logger)
	if err != nil {
		return err
	}
	if _, err := sqldb.RunMigrations(ctx, db); err != nil {
		return err
	}
	seed, err := sqldb.NewShopRepository(db).Seed(ctx)
	if err != nil {
		return err
	}
	if orderID == 0 {
		orderID = seed.OrderID
	}

	sessions, err := orm.NewSessionFactory(db, sqldb.Entities(), orm.WithLogger(logger), orm.WithBatchSize(cfg.DB.BatchSize))
	if err != nil {
		return err
	}

	first := sessions.Open(ctx)
	order, err := orm.Get[sqldb.Order](ctx, first, orderID)
	if err != nil {
		first.Close()
		return err
	}
	if _, err := order.Items.All(); err != nil {
		first.Close()
		return err
	}

	model := application.NewDetachableModel(order, orm.ContextFinder(orm.WithSession(ctx, first)),
		application.WithLogger(logger),
		application.WithMapKeys(cfg.Walk.MapKeys),
	)
	nodes, err := model.Detach()
	first.Close()
	if err != nil {
		return err
	}

	fmt.Printf("detached order %s: %d nodes visited\n", order.Number, nodes)
	printDefinitions(model.Definitions())

	if _, err := order.Tags.All(); errors.Is(err, domain.ErrLazyInitialization) {
		fmt.Println("tags are lazy while detached")
	}

	second := sessions.Open(ctx)
	defer second.Close()
	attached, err := model.Attach(orm.ContextFinder(orm.WithSession(ctx, second)))
	if err != nil {
		return err
	}
	for _, v := range attached {
		if err := second.Initialize(v); err != nil {
			return err
		}
	}

	items, _ := order.Items.All()
	tags, _ := order.Tags.All()
	keys, _ := order.Attributes.Keys()
	notes, _ := order.Notes.Len()
	printKV([][2]string{
		{"order", order.Number},
		{"customer", order.Customer.Name},
		{"items", fmt.Sprint(len(items))},
		{"tags", fmt.Sprint(len(tags))},
		{"attributes", fmt.Sprint(keys)},
		{"notes", fmt.Sprint(notes)},
		{"queries", fmt.Sprint(second.Queries())},
	})
	return nil
}
