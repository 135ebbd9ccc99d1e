package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/ykhdr/rainbow-crack/common/amqp"
	"github.com/ykhdr/rainbow-crack/common/consul"
	mongostore "github.com/ykhdr/rainbow-crack/common/store/mongo"
	"github.com/ykhdr/rainbow-crack/config"
	"github.com/ykhdr/rainbow-crack/internal/dispatcher"
	"github.com/ykhdr/rainbow-crack/internal/hashcrack"
	"github.com/ykhdr/rainbow-crack/internal/metrics"
	"github.com/ykhdr/rainbow-crack/internal/rainbow"
	"github.com/ykhdr/rainbow-crack/internal/server"
	"github.com/ykhdr/rainbow-crack/internal/store/requeststore"
	"github.com/ykhdr/rainbow-crack/pkg/api"
	"github.com/ykhdr/rainbow-crack/pkg/messages"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		tf       tableFlags
		addr     string
		executor string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve crack requests over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fs := cmd.Flags()
			tf.apply(fs, a.cfg.TableConfig)
			if fs.Changed("addr") {
				a.cfg.ServerConfig.Addr = addr
			}
			if fs.Changed("executor") {
				a.cfg.ServerConfig.Executor = executor
			}
			if err := a.validate(); err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()
			return ignoreCancel(a.serve(ctx))
		},
	}
	fs := cmd.Flags()
	tf.register(fs)
	fs.StringVar(&addr, "addr", "", "listen address")
	fs.StringVar(&executor, "executor", "", "where requests are cracked (local, amqp)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	metrics.Register()
	cfg := a.cfg.ServerConfig

	requestStore, closeStore, err := a.openRequestStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	group, gCtx := errgroup.WithContext(ctx)
	var (
		exec dispatcher.Executor
		opts []server.Option
	)
	switch cfg.Executor {
	case config.ExecutorAmqp:
		conn, err := amqp.Dial(gCtx, a.cfg.AmqpConfig, a.l)
		if err != nil {
			return errors.Wrap(rainbow.ErrResource, err.Error())
		}
		defer func() { _ = conn.Close() }()
		ch, err := conn.Channel(gCtx)
		if err != nil {
			return errors.Wrap(rainbow.ErrResource, err.Error())
		}
		defer func() { _ = ch.Close() }()
		amqpCfg := a.cfg.AmqpConfig
		if err := ch.Declare(amqpCfg.Prefetch, amqpCfg.RequestQueue, amqpCfg.ResponseQueue); err != nil {
			return errors.Wrap(rainbow.ErrResource, err.Error())
		}
		publisher := amqp.NewPublisher[messages.CrackRequest](ch, amqpCfg.Publisher(amqpCfg.RequestQueue), nil, a.l)
		consumer := amqp.NewConsumer[messages.CrackResponse](
			ch,
			dispatcher.ResponseHandler(requestStore, a.l),
			amqpCfg.Consumer(amqpCfg.ResponseQueue),
			nil,
			a.l,
		)
		group.Go(func() error {
			consumer.Subscribe(gCtx)
			return gCtx.Err()
		})
		exec = dispatcher.NewAmqpExecutor(publisher)
	default:
		t, svc, err := a.openService(cfg.CacheSize)
		if err != nil {
			return err
		}
		defer func() { _ = t.Close() }()
		exec = dispatcher.NewLocalExecutor(svc, requestStore)
		opts = append(opts, server.WithTable(tableResponse(t, svc.Scheme())))
	}

	if cfg.ConsulConfig != nil && cfg.ConsulConfig.Enabled {
		consulClient, err := consul.NewClient(cfg.ConsulConfig)
		if err != nil {
			return errors.Wrap(rainbow.ErrResource, err.Error())
		}
		opts = append(opts, server.WithConsul(consulClient))
	}

	d := dispatcher.NewDispatcher(dispatcher.Config{
		RequestQueueSize: cfg.RequestQueueSize,
		DispatchTimeout:  cfg.DispatchTimeout,
		RequestTimeout:   cfg.RequestTimeout,
		Concurrency:      cfg.Concurrency,
	}, requestStore, exec, a.l)
	srv := server.NewServer(cfg, d, requestStore, a.l, opts...)

	group.Go(func() error {
		return d.Start(gCtx)
	})
	group.Go(func() error {
		return srv.Start(gCtx)
	})
	return group.Wait()
}

func (a *app) openRequestStore(ctx context.Context) (requeststore.RequestStore, func(), error) {
	storeCfg := a.cfg.StoreConfig
	if storeCfg.Backend != config.StoreMongo {
		return requeststore.NewMemoryStore(), func() {}, nil
	}
	client, err := mongostore.NewClient(&storeCfg.MongoConfig.ClientConfig, a.l)
	if err != nil {
		return nil, nil, errors.Wrap(rainbow.ErrResource, err.Error())
	}
	closeFn := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			a.l.Warn().Err(err).Msg("error disconnect mongodb")
		}
	}
	if err := client.Ping(ctx, nil); err != nil {
		closeFn()
		return nil, nil, errors.Wrapf(rainbow.ErrResource, "ping mongodb: %v", err)
	}
	return requeststore.NewMongoStore(client.Database(storeCfg.MongoConfig.Database)), closeFn, nil
}

func tableResponse(t *hashcrack.Table, scheme *rainbow.Scheme) *api.TableResponse {
	resp := &api.TableResponse{
		Hasher:         scheme.Hasher.Name(),
		Reduction:      scheme.Reduction.Name(),
		PasswordLength: scheme.Length,
		ChainLength:    scheme.ChainLength,
		Chains:         t.Stats.TotalRows,
		UniqueEndings:  t.Stats.UniqueEndings,
		Index:          t.Backend,
	}
	return resp
}

// ignoreCancel treats a shutdown by signal as a clean exit.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
