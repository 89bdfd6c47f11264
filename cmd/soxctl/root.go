package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sox-verified-go/accumulator"
	"sox-verified-go/client"
	"sox-verified-go/config"
	"sox-verified-go/internal/metrics"
	"sox-verified-go/internal/store"
	"sox-verified-go/pkg/logger"
)

// app is the per-invocation state every subcommand shares.
type app struct {
	cfg     config.Config
	log     *logger.Logger
	metrics *metrics.Recorder
	store   *store.Store
}

func (a *app) treeOpts() []accumulator.Option { return a.cfg.TreeOptions() }

func (a *app) clientOpts() []client.Option {
	return []client.Option{
		client.WithLogger(a.log),
		client.WithMetrics(a.metrics),
		client.WithTreeOptions(a.treeOpts()...),
	}
}

// NewRootCmd builds soxctl with every subcommand attached.
func NewRootCmd() *cobra.Command {
	a := &app{}
	v := viper.New()

	root := &cobra.Command{
		Use:   "soxctl",
		Short: "Run and check the off-chain side of a fair-exchange dispute",
		Long: `soxctl encrypts files for sale, compiles and evaluates the exchange circuit,
and builds or checks the per-gate proofs an on-chain dispute needs.

Settings come from soxctl.yaml, SOX_* environment variables and flags, in
increasing order of precedence.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.BindFlags(v, cmd.Root().PersistentFlags()); err != nil {
				return err
			}
			path, _ := cmd.Root().PersistentFlags().GetString("config")
			cfg, err := config.Load(v, path)
			if err != nil {
				return err
			}
			l, err := cfg.Logger("soxctl")
			if err != nil {
				return err
			}
			a.cfg, a.log, a.metrics = cfg, l.With("command", cmd.Name()), metrics.NewRecorder()
			a.store, err = store.Open(cfg.StoreDir, a.log, a.metrics)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.store != nil {
				if err := a.store.Close(); err != nil {
					return err
				}
			}
			if a.cfg.MetricsTextfile == "" {
				return nil
			}
			a.log.Debug("writing metrics", "path", a.cfg.MetricsTextfile)
			return a.metrics.WriteTextfile(a.cfg.MetricsTextfile)
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		encryptCmd(a),
		describeCmd(a),
		compileCmd(a),
		evaluateCmd(a),
		digestCmd(a),
		commitCmd(a),
		openCmd(a),
		proveCmd(a),
		verifyCmd(a),
		bisectCmd(a),
	)
	return root
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
