package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sellerdesk/api/internal/platform/config"
	"github.com/sellerdesk/api/internal/repositories"
	"github.com/sellerdesk/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Orders  services.OrderService
	Wallet  services.WalletService
	Payouts services.PayoutService
	System  services.SystemService
}

// Deps carries externally constructed infrastructure into the container.
// Publishers are optional; services degrade to log-only event delivery
// when they are nil.
type Deps struct {
	OrderEvents  services.OrderEventPublisher
	PayoutEvents services.PayoutEventPublisher
	Logger       *zap.Logger
	Build        services.BuildInfo
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies from the repository
// registry and configuration.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, deps Deps) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources held by the repository layer.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, deps Deps) (Services, error) {
	var svc Services

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logFn := zapEventLogger(logger)

	resolver, err := services.NewCommissionResolver(services.CommissionResolverDeps{
		Categories:     reg.Categories(),
		Sellers:        reg.Sellers(),
		DefaultPercent: decimal.NewFromFloat(cfg.Payout.DefaultCommissionPercent),
		Logger:         logFn,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build commission resolver: %w", err)
	}

	calculator, err := services.NewEarningsCalculator(services.EarningsCalculatorDeps{
		Resolver:             resolver,
		ReturnWindowDays:     cfg.Payout.ReturnWindowDays,
		CommissionTaxPercent: decimal.NewFromFloat(cfg.Payout.CommissionTaxPercent),
		Clock:                time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build earnings calculator: %w", err)
	}

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Counters:   reg.Counters(),
		Calculator: calculator,
		Publisher:  deps.OrderEvents,
		Tx:         reg,
		Clock:      time.Now,
		IDGen:      prefixedIDGen("ord_"),
		Logger:     logFn,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	walletSvc, err := services.NewWalletService(services.WalletServiceDeps{
		Orders:  reg.Orders(),
		Payouts: reg.Payouts(),
		Wallets: reg.Wallets(),
		Clock:   time.Now,
		Logger:  logFn,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build wallet service: %w", err)
	}
	svc.Wallet = walletSvc

	payoutSvc, err := services.NewPayoutService(services.PayoutServiceDeps{
		Payouts:   reg.Payouts(),
		Orders:    reg.Orders(),
		Sellers:   reg.Sellers(),
		Counters:  reg.Counters(),
		Publisher: deps.PayoutEvents,
		MinAmount: decimal.NewFromFloat(cfg.Payout.MinPayoutAmount),
		Clock:     time.Now,
		IDGen:     prefixedIDGen("pay_"),
		Logger:    logFn,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payout service: %w", err)
	}
	svc.Payouts = payoutSvc

	if healthRepo := reg.Health(); healthRepo != nil {
		build := deps.Build
		if build.Environment == "" {
			build.Environment = cfg.Security.Environment
		}
		if build.StartedAt.IsZero() {
			build.StartedAt = time.Now().UTC()
		}
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            time.Now,
			Build:            build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

func prefixedIDGen(prefix string) func() string {
	return func() string {
		return prefix + ulid.Make().String()
	}
}

func zapEventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(event, zapFields...)
	}
}
