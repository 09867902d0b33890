// Package app собирает консоль из конфигурации: хранилище, клиент API,
// сессию, кэш запросов, операции и бота.
package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ivanoskov/custody_admin/internal/bot"
	"github.com/ivanoskov/custody_admin/internal/charts"
	"github.com/ivanoskov/custody_admin/internal/config"
	"github.com/ivanoskov/custody_admin/internal/ledger"
	"github.com/ivanoskov/custody_admin/internal/logger"
	"github.com/ivanoskov/custody_admin/internal/metrics"
	"github.com/ivanoskov/custody_admin/internal/model"
	"github.com/ivanoskov/custody_admin/internal/query"
	"github.com/ivanoskov/custody_admin/internal/session"
	"github.com/ivanoskov/custody_admin/internal/store"
	"github.com/ivanoskov/custody_admin/internal/workflow"
)

type App struct {
	Bot      *bot.Bot
	Session  *session.Manager
	Registry *prometheus.Registry

	store store.Store
	log   *zap.Logger
}

// New открывает хранилище и восстанавливает сохранённую сессию.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, sender bot.Sender) (*App, error) {
	st, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}
	a, err := build(ctx, cfg, log, sender, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg *config.Config, log *zap.Logger, sender bot.Sender, st store.Store) (*App, error) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	client, err := ledger.New(ledger.Config{
		BaseURL: cfg.APIURL,
		Timeout: cfg.RequestTimeout,
		Logger:  logger.Named(log, "ledger"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	sess, err := session.NewManager(ctx, st, client,
		session.WithLogger(logger.Named(log, "session")),
		session.WithMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	res := query.NewResources(client, sess, query.Options{
		StaleTime: cfg.QueryStaleTime,
		Logger:    logger.Named(log, "query"),
		Metrics:   m,
	})

	wfOpts := workflow.Options{
		Timeout: cfg.SubmitTimeout,
		Logger:  logger.Named(log, "workflow"),
		Metrics: m,
	}
	sentinel := workflow.Sentinel{}
	if cfg.SentinelEnabled() {
		sentinel = workflow.Sentinel{Word: cfg.CreditSentinel, Secret: cfg.CreditPassword}
	}

	credit := workflow.NewCreditWallet(client, st, sentinel, wfOpts.Logger)
	transfer := workflow.NewTransferFunds(client)
	evacuate := workflow.NewEvacuateFunds(client)
	push := workflow.NewSendPush(client)
	newFlows := func(chatID int64) *bot.Flows {
		opts := wfOpts
		opts.Scope = strconv.FormatInt(chatID, 10)
		opts.Logger = wfOpts.Logger.With(zap.Int64("chat_id", chatID))
		return &bot.Flows{
			Credit:   workflow.New[workflow.CreditWalletForm, ledger.Result](credit, sess, st, opts),
			Transfer: workflow.New[workflow.TransferForm, ledger.Result](transfer, sess, st, opts),
			Evacuate: workflow.New[workflow.EvacuateForm, model.EvacuationReport](evacuate, sess, st, opts),
			Push:     workflow.New[workflow.PushForm, ledger.Result](push, sess, st, opts),
		}
	}

	b, err := bot.New(bot.Deps{
		Sender:    sender,
		Sessions:  sess,
		Resources: res,
		NewFlows:  newFlows,
		Charts:    charts.NewChartGenerator(),
		Operators: cfg.OperatorChatIDs,
		Logger:    logger.Named(log, "bot"),
	})
	if err != nil {
		return nil, err
	}

	sess.OnInvalidate(func(reason error) {
		res.Invalidate()
		b.SessionLost(reason)
	})

	return &App{Bot: b, Session: sess, Registry: reg, store: st, log: log}, nil
}

func (a *App) Close() error {
	return a.store.Close()
}
