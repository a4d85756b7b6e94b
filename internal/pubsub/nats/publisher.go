package nats

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"ammQuote/internal/model"
)

// DefaultSubject prefixes every sample subject.
const DefaultSubject = "ammquote.twap"

type Config struct {
	URL string
	// Subject is the prefix; samples go to <Subject>.<pool id>.
	Subject      string
	FlushTimeout time.Duration
}

// Publisher sends TWAP samples to NATS as JSON.
type Publisher struct {
	nc     *nats.Conn
	cfg    Config
	logger *zap.Logger
}

func Connect(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 5 * time.Second
	}

	opts := []nats.Option{
		nats.Name("ammquote"),
		nats.Timeout(5 * time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	logger.Info("nats connected", zap.String("url", cfg.URL), zap.String("subject", cfg.Subject))
	return &Publisher{nc: nc, cfg: cfg, logger: logger}, nil
}

// Subject returns the subject samples for poolID are published on.
func (p *Publisher) Subject(poolID string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, poolID)
	return p.cfg.Subject + "." + token
}

// PutSampleBatch publishes each sample and flushes once.
func (p *Publisher) PutSampleBatch(samples []model.TWAPSample) error {
	if len(samples) == 0 {
		return nil
	}
	if p.nc == nil {
		return errors.New("nats connection is closed")
	}
	if status := p.Status(); status == nats.CLOSED {
		return fmt.Errorf("nats connection is %s", status)
	}
	for _, sample := range samples {
		payload, err := json.Marshal(sample)
		if err != nil {
			return fmt.Errorf("marshal twap sample: %w", err)
		}
		if err := p.nc.Publish(p.Subject(sample.PoolID), payload); err != nil {
			return fmt.Errorf("publish twap sample: %w", err)
		}
	}
	if err := p.nc.FlushTimeout(p.cfg.FlushTimeout); err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	return nil
}

// Ready reports whether the connection is up.
func (p *Publisher) Ready() bool {
	return p.nc != nil && p.nc.Status() == nats.CONNECTED
}

func (p *Publisher) Status() nats.Status {
	if p.nc == nil {
		return nats.DISCONNECTED
	}
	return p.nc.Status()
}

// Close drains the connection. Closing twice is a no-op.
func (p *Publisher) Close() error {
	if p.nc == nil || p.nc.Status() == nats.CLOSED {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}
	p.nc.Close()
	p.logger.Info("nats connection closed")
	return nil
}
