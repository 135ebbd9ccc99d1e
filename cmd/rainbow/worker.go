package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/ykhdr/rainbow-crack/common/amqp"
	"github.com/ykhdr/rainbow-crack/internal/metrics"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
	"github.com/ykhdr/rainbow-crack/internal/worker"
)

func newWorkerCmd(a *app) *cobra.Command {
	var tf tableFlags
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Crack requests taken from the AMQP request queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tf.apply(cmd.Flags(), a.cfg.TableConfig)
			if err := a.validate(); err != nil {
				return err
			}
			if a.cfg.AmqpConfig == nil {
				return errors.Wrap(rainbow.ErrValidation, "worker requires an amqp section")
			}
			metrics.Register()
			t, svc, err := a.openService(a.cfg.ServerConfig.CacheSize)
			if err != nil {
				return err
			}
			defer func() { _ = t.Close() }()

			ctx, cancel := signalContext(cmd)
			defer cancel()
			conn, err := amqp.Dial(ctx, a.cfg.AmqpConfig, a.l)
			if err != nil {
				return errors.Wrap(rainbow.ErrResource, err.Error())
			}
			defer func() { _ = conn.Close() }()
			return ignoreCancel(worker.NewService(a.cfg.AmqpConfig, svc, a.l).Start(ctx, conn))
		},
	}
	tf.register(cmd.Flags())
	return cmd
}
