// match-execute runs the matching engine from the command line, for scheduled
// runs and for re-running a demand by hand.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/match-execute run --demand 12
//	go run ./cmd/match-execute show --execution 40
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mmdatafocus/agromatch_backend/appctx"
	"github.com/mmdatafocus/agromatch_backend/config"
	"github.com/mmdatafocus/agromatch_backend/matching"
	"github.com/mmdatafocus/agromatch_backend/models"
	"github.com/mmdatafocus/agromatch_backend/workflow"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "match-execute",
		Usage: "Run and inspect producer matching executions",
		Commands: []*cli.Command{
			runCmd,
			scoreCmd,
			showCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error: ", err)
		os.Exit(1)
	}
}

var runCmd = &cli.Command{
	Name:    "run",
	Usage:   "Execute matching for a demand version",
	Aliases: []string{"r"},
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "demand-version",
			Usage: "demand version id to match",
		},
		&cli.IntFlag{
			Name:  "demand",
			Usage: "demand id; its current version is matched",
		},
		&cli.StringFlag{
			Name:  "trigger",
			Value: string(matching.TriggerAuto),
			Usage: "execution trigger (manual, manual_api, auto)",
		},
		&cli.StringFlag{
			Name:  "correlation-id",
			Usage: "correlation id recorded on the execution",
		},
	},
	Action: func(c *cli.Context) error {
		versionID := c.Int("demand-version")
		demandID := c.Int("demand")
		if (versionID > 0) == (demandID > 0) {
			return errors.New("exactly one of --demand-version or --demand is required")
		}

		o := connect()
		if demandID > 0 {
			id, err := models.GetCurrentDemandVersionID(c.Context, config.GetDB(), demandID)
			if err != nil {
				return fmt.Errorf("resolve current version of demand %d: %w", demandID, err)
			}
			versionID = id
		}

		ctx := c.Context
		if cid := c.String("correlation-id"); cid != "" {
			ctx = appctx.Set(ctx, appctx.ContextKeyCorrelationId, cid)
		}
		res, err := o.Execute(ctx, versionID, matching.Trigger(c.String("trigger")))
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var scoreCmd = &cli.Command{
	Name:  "score",
	Usage: "Score one producer against a demand version without persisting anything",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "demand-version", Required: true, Usage: "demand version id"},
		&cli.IntFlag{Name: "producer", Required: true, Usage: "producer profile id"},
		&cli.StringFlag{Name: "urgency", Usage: "baixa, media or alta"},
		&cli.StringSliceFlag{Name: "priority", Usage: "notice priority keyword, repeatable"},
	},
	Action: func(c *cli.Context) error {
		var mctx *matching.MatchContext
		if c.IsSet("urgency") || c.IsSet("priority") {
			mctx = &matching.MatchContext{Urgency: c.String("urgency"), Priorities: c.StringSlice("priority")}
		}
		o := connect()
		res, err := o.ScoreProducer(c.Context, c.Int("demand-version"), c.Int("producer"), mctx)
		if err != nil {
			return err
		}
		return printJSON(res.Response())
	},
}

var showCmd = &cli.Command{
	Name:  "show",
	Usage: "Print a stored execution with its candidates",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "execution", Required: true, Usage: "execution id"},
	},
	Action: func(c *cli.Context) error {
		o := connect()
		record, err := o.GetExecutionRecord(c.Context, c.Int("execution"))
		if err != nil {
			return err
		}
		return printJSON(record)
	},
}

// connect opens the database and, when exclusive runs are enabled, redis for
// the run lock.
func connect() *matching.Orchestrator {
	config.ConnectDatabaseWithRetry()
	settings := matching.DefaultSettings()
	settings.Filter.RadiusKm = config.FloatFromEnv("MATCH_FILTER_RADIUS_KM", settings.Filter.RadiusKm)
	settings.Filter.MaxOpenProposals = config.IntFromEnv("MATCH_MAX_OPEN_PROPOSALS", settings.Filter.MaxOpenProposals)
	settings.AlternativesLimit = config.IntFromEnv("MATCH_ALTERNATIVES_LIMIT", settings.AlternativesLimit)
	settings.RegionalBonus = config.RegionalBonusEnabled()

	o := matching.NewOrchestrator(models.NewMatchStore(config.GetDB()), settings, config.GetLogger())
	if config.ExclusiveMatchRuns() {
		config.ConnectRedisWithRetry()
		o.Locker = workflow.NewRedisRunLocker(config.GetRedisLock())
	}
	return o
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
