package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ledgerwatch/log/v3"
	"github.com/urfave/cli/v2"

	"github.com/bludya/pong-checker/logging"
	"github.com/bludya/pong-checker/metrics"
	"github.com/bludya/pong-checker/pingpong"
	"github.com/bludya/pong-checker/reconcile"
	"github.com/bludya/pong-checker/utils"
)

const usage = "Usage: pong-checker <candidate_bot> <candidate_starting_block>"

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: utils.DefaultConfigFile,
	}
	logDirFlag = &cli.StringFlag{
		Name:  "log.dir",
		Usage: "Directory of the per-candidate log files (overrides log_dir)",
	}
	logVerbosityFlag = &cli.StringFlag{
		Name:  "log.verbosity",
		Usage: "Log level, name or number (overrides log_level)",
	}
	metricsFileFlag = &cli.StringFlag{
		Name:  "metrics.file",
		Usage: "Write Prometheus metrics to this textfile (overrides metrics_file)",
	}
	batchSizeFlag = &cli.IntFlag{
		Name:  "batch-size",
		Usage: "Transactions per eth_getTransactionByHash batch (overrides batch_size)",
	}
)

// check every pong of a candidate bot against the pings since a block
// and log duplicated, orphan and missing pongs
func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "pong-checker",
		Usage:     "review the pongs of a candidate bot against the PingPong contract pings",
		ArgsUsage: "<candidate_bot> <candidate_starting_block>",
		Flags:     []cli.Flag{configFlag, logDirFlag, logVerbosityFlag, metricsFileFlag, batchSizeFlag},
		Action:    run,
	}
}

type args struct {
	candidate     common.Address
	startingBlock uint64
}

func parseArgs(cliCtx *cli.Context) (args, error) {
	if cliCtx.NArg() != 2 {
		return args{}, cli.Exit(usage, 1)
	}
	candidate := cliCtx.Args().Get(0)
	if !common.IsHexAddress(candidate) {
		return args{}, cli.Exit(fmt.Sprintf("invalid candidate address %q\n%s", candidate, usage), 1)
	}
	startingBlock, err := strconv.ParseUint(cliCtx.Args().Get(1), 10, 64)
	if err != nil {
		return args{}, cli.Exit(fmt.Sprintf("invalid starting block %q: %s\n%s", cliCtx.Args().Get(1), err, usage), 1)
	}
	return args{candidate: common.HexToAddress(candidate), startingBlock: startingBlock}, nil
}

func loadConf(cliCtx *cli.Context) (utils.CheckerConfig, error) {
	conf, err := utils.GetConf(cliCtx.String(configFlag.Name))
	if err != nil {
		return conf, err
	}
	if cliCtx.IsSet(logDirFlag.Name) {
		conf.LogDir = cliCtx.String(logDirFlag.Name)
	}
	if cliCtx.IsSet(logVerbosityFlag.Name) {
		conf.LogLevel = cliCtx.String(logVerbosityFlag.Name)
	}
	if cliCtx.IsSet(metricsFileFlag.Name) {
		conf.MetricsFile = cliCtx.String(metricsFileFlag.Name)
	}
	if cliCtx.IsSet(batchSizeFlag.Name) {
		conf.BatchSize = cliCtx.Int(batchSizeFlag.Name)
	}
	return conf, conf.Validate()
}

func run(cliCtx *cli.Context) error {
	a, err := parseArgs(cliCtx)
	if err != nil {
		return err
	}
	conf, err := loadConf(cliCtx)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	rpcURL, err := utils.RpcURL()
	if err != nil {
		return err
	}
	lvl, err := logging.ParseLevel(conf.LogLevel)
	if err != nil {
		return fmt.Errorf("log level %q: %w", conf.LogLevel, err)
	}

	// one log file per candidate, as given on the command line
	logger, logFile, err := logging.New(conf.LogDir, cliCtx.Args().Get(0), lvl)
	if err != nil {
		return fmt.Errorf("logging.New: %w", err)
	}
	defer logFile.Close()

	return check(cliCtx.Context, conf, rpcURL, a, logger)
}

func check(ctx context.Context, conf utils.CheckerConfig, rpcURL string, a args, logger log.Logger) error {
	logger.Info("Starting to review pongs", "candidate", a.candidate.Hex(), "since block", a.startingBlock)

	contractAbi, err := pingpong.LoadABI(conf.AbiPath)
	if err != nil {
		logger.Error("LoadABI", "err", err)
		return err
	}

	node, err := pingpong.Dial(ctx, rpcURL)
	if err != nil {
		logger.Error("pingpong.Dial", "err", err)
		return err
	}
	defer node.Close()

	contract, err := pingpong.NewContract(node, common.HexToAddress(conf.ContractAddress), contractAbi, logger, conf.BatchSize)
	if err != nil {
		logger.Error("pingpong.NewContract", "err", err)
		return err
	}

	pings, err := contract.Pings(ctx, a.startingBlock)
	if err != nil {
		logger.Error("contract.Pings", "err", err)
		return err
	}
	pongs, err := contract.Pongs(ctx, a.startingBlock, a.candidate)
	if err != nil {
		logger.Error("contract.Pongs", "err", err)
		return err
	}
	logger.Info(fmt.Sprintf("Pings: %d | Pongs: %d", len(pings), len(pongs)))

	report := reconcile.Reconcile(pings, pongs)
	report.Log(logger)

	if conf.MetricsFile != "" {
		m := metrics.New(a.candidate.Hex())
		m.Observe(report)
		if err := m.WriteTextfile(conf.MetricsFile); err != nil {
			logger.Error("metrics.WriteTextfile", "err", err)
			return err
		}
		logger.Info("Metrics written", "file", conf.MetricsFile)
	}

	logger.Info("Check finished", "errors", report.Errors())
	return nil
}
