package bayz

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	intaudio "github.com/cbegin/bayz-go/internal/audio"
	"github.com/cbegin/bayz-go/internal/playback"
	"github.com/cbegin/bayz-go/internal/score"
	"github.com/cbegin/bayz-go/internal/transport"
	"github.com/cbegin/bayz-go/internal/voice"
)

const DefaultSampleRate = 44100

type ClientOption func(*clientConfig)

type clientConfig struct {
	sampleRate   int
	serverURL    string
	pollInterval time.Duration
	tickPeriod   time.Duration
	params       voice.Params
	masterGain   float64
	logger       *slog.Logger
	sampleTap    func([]float32)
}

func defaultClientConfig() clientConfig {
	return clientConfig{
		sampleRate:   DefaultSampleRate,
		serverURL:    transport.DefaultURL,
		pollInterval: transport.DefaultInterval,
		tickPeriod:   playback.DefaultTickPeriod,
		params:       voice.DefaultParams(),
		masterGain:   1,
		logger:       slog.Default(),
	}
}

func WithSampleRate(rate int) ClientOption {
	return func(cfg *clientConfig) {
		cfg.sampleRate = rate
	}
}

func WithServerURL(url string) ClientOption {
	return func(cfg *clientConfig) {
		cfg.serverURL = url
	}
}

func WithPollInterval(d time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.pollInterval = d
	}
}

func WithTickPeriod(d time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.tickPeriod = d
	}
}

func WithVoiceParams(p voice.Params) ClientOption {
	return func(cfg *clientConfig) {
		cfg.params = p
	}
}

func WithMasterGain(gain float64) ClientOption {
	return func(cfg *clientConfig) {
		cfg.masterGain = gain
	}
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) ClientOption {
	return func(cfg *clientConfig) {
		cfg.sampleTap = tap
	}
}

// outputDevice is the part of *audio.Output the client drives.
type outputDevice interface {
	Resume()
	Suspend()
	Close() error
}

// tappedSource feeds the mixer to the device and hands each buffer to tap.
type tappedSource struct {
	mixer *voice.Mixer
	tap   func([]float32)
}

func (s *tappedSource) Process(dst []float32) {
	s.mixer.Process(dst)
	if s.tap != nil {
		s.tap(dst)
	}
}

// Client is the playback client: it polls the compose server, hands
// snapshots to the engine and streams the mixer to the audio device. Nothing
// sounds until Start.
type Client struct {
	mu         sync.Mutex
	cfg        clientConfig
	logger     *slog.Logger
	mixer      *voice.Mixer
	engine     *playback.Engine
	poller     *transport.Poller
	output     outputDevice
	openOutput func(sampleRate int, src intaudio.Source) (outputDevice, error)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	if cfg.tickPeriod <= 0 {
		return nil, errors.New("tickPeriod must be positive")
	}
	if cfg.pollInterval <= 0 {
		return nil, errors.New("pollInterval must be positive")
	}
	mixer, engine := newPipeline(cfg)
	return &Client{
		cfg:    cfg,
		logger: cfg.logger.With("component", "client"),
		mixer:  mixer,
		engine: engine,
		poller: transport.NewPoller(cfg.serverURL, cfg.pollInterval, cfg.logger),
		openOutput: func(sampleRate int, src intaudio.Source) (outputDevice, error) {
			return intaudio.Open(sampleRate, src, 0)
		},
	}, nil
}

// newPipeline builds a mixer and an engine that stops the voices of every
// composition it retires.
func newPipeline(cfg clientConfig) (*voice.Mixer, *playback.Engine) {
	mixer := voice.NewMixer(cfg.sampleRate,
		voice.WithParams(cfg.params),
		voice.WithLogger(cfg.logger),
	)
	mixer.SetMasterGain(cfg.masterGain)
	engine := playback.NewEngine(mixer, mixer,
		playback.WithTickPeriod(cfg.tickPeriod),
		playback.WithLogger(cfg.logger),
		playback.WithRetire(func(c *playback.Composition) {
			now := mixer.Now()
			for _, b := range c.Blocks {
				b.Voice().Stop(now)
			}
		}),
	)
	return mixer, engine
}

// Start resumes audio output, starts the scheduler and begins polling. It is
// a no-op while already running.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}
	if c.output == nil {
		out, err := c.openOutput(c.cfg.sampleRate, &tappedSource{mixer: c.mixer, tap: c.cfg.sampleTap})
		if err != nil {
			return err
		}
		c.output = out
	}
	c.output.Resume()
	c.engine.Start()

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	snapshots := make(chan score.Snapshot, 1)
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		_ = c.engine.Run(runCtx, snapshots)
	}()
	go func() {
		defer c.wg.Done()
		_ = c.poller.Run(runCtx, func(s score.Snapshot) {
			offerLatest(snapshots, s)
		})
	}()
	c.logger.Info("started", "server", c.cfg.serverURL)
	return nil
}

// offerLatest queues s without blocking. A snapshot still waiting in ch is
// older than s and is discarded.
func offerLatest(ch chan score.Snapshot, s score.Snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Stop halts the scheduler, releases every sounding voice, suspends audio
// output and stops polling. Compositions already received are kept, so a
// later Start resumes them at a fresh boundary.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return nil
	}
	c.engine.Stop()
	c.mixer.ReleaseAll(c.mixer.Now())
	c.output.Suspend()
	c.cancel()
	c.cancel = nil
	c.wg.Wait()
	c.logger.Info("stopped")
	return nil
}

// Toggle starts a stopped client and stops a running one. It reports whether
// the client is running afterwards.
func (c *Client) Toggle(ctx context.Context) (bool, error) {
	if c.Running() {
		return false, c.Stop()
	}
	if err := c.Start(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// OnCompositionReceived proposes a snapshot directly, bypassing the poller.
func (c *Client) OnCompositionReceived(s score.Snapshot) error {
	return c.engine.OnCompositionReceived(s)
}

// Close stops playback and releases the audio device.
func (c *Client) Close() error {
	if err := c.Stop(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.output == nil {
		return nil
	}
	err := c.output.Close()
	c.output = nil
	return err
}

func (c *Client) Engine() *playback.Engine { return c.engine }
func (c *Client) Mixer() *voice.Mixer      { return c.mixer }
