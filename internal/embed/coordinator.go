package embed

import (
	"context"
	"time"

	"github.com/openmemory/engine/internal/model"
	"github.com/openmemory/engine/internal/telemetry"
	"go.uber.org/zap"
)

// LogSink persists one embed attempt. internal/store's Store
// implementations satisfy this so every coordinator call leaves an
// observability trail (§3 "Embed log").
type LogSink interface {
	LogEmbed(ctx context.Context, entry model.EmbedLog) error
}

// Config controls tier, provider selection, and batching mode for a
// Coordinator, mirroring the configuration keys in §6.
type Config struct {
	Tier            Tier
	ProviderName    string
	Mode            Mode
	ProviderTimeout time.Duration
}

// Coordinator implements embed_one/embed_batch (§4.2): it routes each
// sector to either the synthetic embedder or the configured external
// Provider depending on tier, applies the bounded per-call timeout,
// and records one EmbedLog entry per attempt. A provider failure on a
// non-primary sector never aborts the batch — the sector is simply
// absent from the returned map; the caller (internal/engine) is
// responsible for treating a missing primary-sector vector as fatal.
type Coordinator struct {
	cfg      Config
	provider Provider
	sink     LogSink
	metrics  *telemetry.Collector
	logger   *zap.Logger
}

// NewCoordinator builds a Coordinator. provider may be nil only when
// cfg.Tier never routes any sector to it (HYBRID/FAST). metrics
// defaults to a private no-op Collector when nil.
func NewCoordinator(cfg Config, provider Provider, sink LogSink, metrics *telemetry.Collector, logger *zap.Logger) *Coordinator {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 30 * time.Second
	}
	if metrics == nil {
		metrics = telemetry.NewNop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{cfg: cfg, provider: provider, sink: sink, metrics: metrics, logger: logger}
}

// EmbedOne implements embed_one(text, sector) -> vec[dim].
func (c *Coordinator) EmbedOne(ctx context.Context, text string, s model.Sector) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, text, []model.Sector{s})
	if err != nil {
		return nil, err
	}
	v, ok := vecs[s]
	if !ok {
		return nil, model.ErrEmbedFailed(s, c.providerNameFor(s), "embedding dropped after provider failure", nil)
	}
	return v, nil
}

// EmbedBatch implements embed_batch(text, sectors[]) -> {sector -> vec}.
// Sectors whose embedding failed are simply absent from the result;
// EmbedBatch itself never returns an error for per-sector failures.
func (c *Coordinator) EmbedBatch(ctx context.Context, text string, sectors []model.Sector) (map[model.Sector][]float32, error) {
	out := make(map[model.Sector][]float32, len(sectors))

	var sharedVec []float32
	var sharedErr error
	sharedFetched := false

	for _, s := range sectors {
		dim := DimFor(c.cfg.Tier, s)

		if !UsesProvider(c.cfg.Tier, s) {
			v := HashEmbed(text, s, dim)
			out[s] = v
			c.log(ctx, s, dim, len(text), true)
			continue
		}

		if c.cfg.Mode == ModeSimple {
			if !sharedFetched {
				sharedVec, sharedErr = c.callProvider(ctx, text, s, dim)
				sharedFetched = true
			}
			if sharedErr != nil {
				c.logger.Warn("embed sector dropped", zap.String("sector", string(s)), zap.Error(sharedErr))
				c.metrics.EmbedFailures.WithLabelValues(string(s), c.providerNameFor(s)).Inc()
				c.log(ctx, s, dim, len(text), false)
				continue
			}
			out[s] = fitDim(sharedVec, dim)
			c.log(ctx, s, dim, len(text), true)
			continue
		}

		v, err := c.callProvider(ctx, text, s, dim)
		if err != nil {
			c.logger.Warn("embed sector dropped", zap.String("sector", string(s)), zap.Error(err))
			c.metrics.EmbedFailures.WithLabelValues(string(s), c.providerNameFor(s)).Inc()
			c.log(ctx, s, dim, len(text), false)
			continue
		}
		out[s] = v
		c.log(ctx, s, dim, len(text), true)
	}

	return out, nil
}

func (c *Coordinator) callProvider(ctx context.Context, text string, s model.Sector, dim int) ([]float32, error) {
	cctx, cancel := context.WithTimeout(ctx, c.cfg.ProviderTimeout)
	defer cancel()
	start := time.Now()
	v, err := c.provider.Embed(cctx, text, s, dim)
	c.metrics.EmbedLatency.WithLabelValues(string(s), c.providerNameFor(s)).Observe(time.Since(start).Seconds())
	return v, err
}

func (c *Coordinator) log(ctx context.Context, s model.Sector, dim, inputLen int, ok bool) {
	if c.sink == nil {
		return
	}
	entry := model.EmbedLog{
		Ts:          time.Now().UTC(),
		Provider:    c.providerNameFor(s),
		Sector:      s,
		InputTokens: inputLen,
		Dim:         dim,
		OK:          ok,
	}
	if err := c.sink.LogEmbed(ctx, entry); err != nil {
		c.logger.Warn("embed log write failed", zap.Error(err))
	}
}

func (c *Coordinator) providerNameFor(s model.Sector) string {
	if !UsesProvider(c.cfg.Tier, s) {
		return "synthetic"
	}
	if c.provider == nil {
		return c.cfg.ProviderName
	}
	return c.provider.Name()
}

func fitDim(v []float32, dim int) []float32 {
	if len(v) == dim {
		return v
	}
	out := make([]float32, dim)
	copy(out, v)
	return out
}
