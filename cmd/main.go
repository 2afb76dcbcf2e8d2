package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"orderexecutor/cmd/keys"
	"orderexecutor/cmd/reconciler"
	"orderexecutor/cmd/trader"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "OrderExecutor CMD"
	app.Usage = "The order executor command line interface"

	app.Commands = []cli.Command{
		traderCMD,
		reconcilerCMD,
		keysCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	traderCMD = cli.Command{
		Name:        "trader",
		Usage:       "run the Trader",
		Action:      traderAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the order execution service: signal intake, risk gate, venue submission, reconciliation`,
	}
	reconcilerCMD = cli.Command{
		Name:        "reconcile",
		Usage:       "run one reconciliation pass",
		Action:      reconcilerAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Compare the local position book against broker positions once and exit`,
	}
	keysCMD = cli.Command{
		Name:        "keys",
		Usage:       "write an encrypted venue credentials file",
		Action:      keysAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Encrypt NEXUS_API_KEY/NEXUS_API_SECRET with CREDENTIALS_PASSPHRASE and write the credentials file`,
	}
)

func traderAction(_ *cli.Context) error {

	logrus.Info("Starting trader CMD")
	logrus.WithField("cmd", "trader")

	t := &trader.Trader{}
	err := t.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func reconcilerAction(_ *cli.Context) error {

	logrus.Info("Starting reconcile CMD")
	logrus.WithField("cmd", "reconcile")

	r := &reconciler.Reconciler{}
	err := r.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func keysAction(_ *cli.Context) error {

	logrus.Info("Starting keys CMD")
	logrus.WithField("cmd", "keys")

	err := keys.Run()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}
