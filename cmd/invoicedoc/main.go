package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicedoc/internal/clock"
	"github.com/smallbiznis/invoicedoc/internal/config"
	"github.com/smallbiznis/invoicedoc/internal/migration"
	"github.com/smallbiznis/invoicedoc/internal/observability"
	"github.com/smallbiznis/invoicedoc/internal/scheduler"
	"github.com/smallbiznis/invoicedoc/internal/server"
	"github.com/smallbiznis/invoicedoc/pkg/cache"
	"github.com/smallbiznis/invoicedoc/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		cache.Module,
		clock.Module,
		migration.Module,

		// HTTP API and the document service behind it
		server.Module,

		// Background integrity sweep over stored operation logs
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
