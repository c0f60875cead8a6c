// Package main implements a demonstration of the settlement protocol running
// on an in-memory overlay.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

func main() {
	err := run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	app := &cli.App{
		Name:  "dvp",
		Usage: "demonstrate atomic delivery versus payment settlements",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path of the scenario configuration",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "trade",
				Usage:  "settle the sale of an asset against cash",
				Action: tradeAction,
			},
			{
				Name:   "fixing",
				Usage:  "create a rate agreement and apply its first fix",
				Action: fixingAction,
			},
		},
	}

	return app.Run(args)
}

// scenario is the configuration of a demonstration run.
type scenario struct {
	Asset string `yaml:"asset"`
	Price struct {
		Quantity uint64 `yaml:"quantity"`
		Currency string `yaml:"currency"`
	} `yaml:"price"`
	Funding struct {
		Quantity uint64 `yaml:"quantity"`
		Currency string `yaml:"currency"`
	} `yaml:"funding"`
	Deal struct {
		Name         string `yaml:"name"`
		Notional     uint64 `yaml:"notional"`
		Currency     string `yaml:"currency"`
		FixedRateBps int64  `yaml:"fixedRateBps"`
		OracleName   string `yaml:"oracleName"`
		RateBps      int64  `yaml:"rateBps"`
	} `yaml:"deal"`
}

// loadScenario reads the configuration, falling back to defaults when no path
// is given.
func loadScenario(c *cli.Context) (scenario, error) {
	s := scenario{Asset: "commodity-1"}
	s.Price.Quantity = 100
	s.Price.Currency = "USD"
	s.Funding.Quantity = 150
	s.Funding.Currency = "USD"
	s.Deal.Name = "rate-agreement-1"
	s.Deal.Notional = 1000000
	s.Deal.Currency = "USD"
	s.Deal.FixedRateBps = 125
	s.Deal.OracleName = "LIBOR-3M"
	s.Deal.RateBps = 142

	path := c.String("config")
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return s, xerrors.Errorf("couldn't read config: %v", err)
	}

	err = yaml.Unmarshal(data, &s)
	if err != nil {
		return s, xerrors.Errorf("couldn't parse config: %v", err)
	}

	return s, nil
}
