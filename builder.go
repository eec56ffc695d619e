package signpanel

import (
	"net/http"
	"regexp"
	"time"

	"github.com/MrEthical07/signpanel/internal/backend"
	"github.com/MrEthical07/signpanel/internal/cooldown"
	"github.com/MrEthical07/signpanel/internal/logging"
	"github.com/MrEthical07/signpanel/internal/notify"
	"github.com/MrEthical07/signpanel/internal/stores"
	"github.com/MrEthical07/signpanel/internal/validate"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles a Panel. It is single use: a second Build fails.
type Builder struct {
	config     Config
	redis      redis.UniversalClient
	storage    Storage
	logger     *zap.Logger
	sink       NotificationSink
	httpClient *http.Client
	clock      cooldown.Clock

	built bool
}

func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis selects Redis storage backed by client. The panel never closes client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	b.config.Storage.Kind = StorageRedis
	return b
}

// WithStorage installs a custom store and takes precedence over Storage.Kind.
func (b *Builder) WithStorage(s Storage) *Builder {
	b.storage = s
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithNotificationSink routes toast events to sink. Without a sink they are dropped.
func (b *Builder) WithNotificationSink(sink NotificationSink) *Builder {
	b.sink = sink
	return b
}

// WithHTTPClient overrides the backend HTTP client; Backend.Timeout is then ignored.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithClock overrides the time source used for cooldown windows.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = clockFunc(now)
	return b
}

type clockFunc func() time.Time

func (f clockFunc) Now() time.Time { return f() }

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Panel, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
		if cfg.Log.Enabled {
			l, err := logging.New(logging.Config{
				Environment: cfg.Log.Environment,
				Level:       cfg.Log.Level,
				Format:      cfg.Log.Format,
			})
			if err != nil {
				return nil, err
			}
			logger = l
		}
	}

	// -------- STORAGE --------
	store := b.storage
	if store == nil {
		switch cfg.Storage.Kind {
		case StorageRedis:
			if b.redis == nil {
				return nil, ErrRedisRequired
			}
			store = stores.NewRedisStore(b.redis, cfg.Storage.RedisPrefix, cfg.Storage.RedisTTL)
		case StorageFile:
			store = stores.NewFileStore(cfg.Storage.FilePath)
		default:
			store = stores.NewMemoryStore()
		}
	}

	metrics := NewMetrics(cfg.Metrics)

	// -------- NOTIFICATIONS --------
	var dispatcher *notify.Dispatcher
	if b.sink != nil {
		dispatcher = notify.NewDispatcher(notify.Config{
			Enabled:    cfg.Notify.Enabled,
			BufferSize: cfg.Notify.BufferSize,
			DropIfFull: cfg.Notify.DropIfFull,
		}, b.sink)
	}
	presenter := notify.NewPresenter(dispatcher, cfg.Notify.DefaultDuration)

	// -------- BACKEND --------
	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Backend.Timeout}
	}
	client := backend.NewClient(cfg.Backend.BaseURL,
		backend.WithHTTPClient(httpClient),
		backend.WithDefaultHeaders(cfg.Backend.Headers),
		backend.WithLogger(logger.Named("backend")),
		backend.WithPaths(backend.Paths{
			Verify:    cfg.Backend.VerifyPath,
			Submit:    cfg.Backend.SubmitPath,
			Calculate: cfg.Backend.CalculatePath,
		}),
		backend.WithObserver(func(_ string, elapsed time.Duration, _ error) {
			metrics.Inc(MetricBackendLatency)
			metrics.Observe(MetricBackendLatency, elapsed)
		}),
	)

	// -------- COOLDOWN --------
	opts := []cooldown.Option{
		cooldown.WithLogger(logger.Named("cooldown")),
		cooldown.WithObserver(cooldownMetrics(metrics)),
	}
	if b.clock != nil {
		opts = append(opts, cooldown.WithClock(b.clock))
	}
	manager := cooldown.New(store, cooldown.Config{
		Window:          cfg.Cooldown.Window,
		TickInterval:    cfg.Cooldown.TickInterval,
		StoreTimeout:    cfg.Cooldown.StoreTimeout,
		KeyPrefix:       cfg.Cooldown.KeyPrefix,
		DefaultLabel:    cfg.Cooldown.DefaultLabel,
		CountdownFormat: cfg.Cooldown.CountdownFormat,
	}, opts...)

	rules := validate.DefaultRules()
	rules.UsernamePattern = regexp.MustCompile(cfg.Validation.UsernamePattern)
	rules.PasswordMinLen = cfg.Validation.PasswordMinLen
	rules.PasswordMaxLen = cfg.Validation.PasswordMaxLen
	rules.CodeLength = cfg.Validation.CodeLength

	now := time.Now
	if b.clock != nil {
		now = b.clock.Now
	}

	p := &Panel{
		config:         cfg,
		logger:         logger,
		store:          store,
		cooldowns:      manager,
		client:         client,
		dispatcher:     dispatcher,
		presenter:      presenter,
		rules:          rules,
		metrics:        metrics,
		now:            now,
		sendControls:   make(map[string]Control),
		submitControls: make(map[Form]SubmitControl),
		sending:        make(map[string]struct{}),
	}

	b.built = true

	return p, nil
}

func cooldownMetrics(m *Metrics) cooldown.Observer {
	return func(ev cooldown.Event) {
		switch ev.Kind {
		case cooldown.EventStarted:
			m.Inc(MetricCooldownStarted)
		case cooldown.EventResumed:
			m.Inc(MetricCooldownResumed)
		case cooldown.EventExpired:
			m.Inc(MetricCooldownExpired)
		}
	}
}
