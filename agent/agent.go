package agent

import (
	"context"
	"io"
	"sync"

	"github.com/avenping/flowengine/analytics"
	"github.com/avenping/flowengine/config"
	"github.com/avenping/flowengine/container"
	"github.com/avenping/flowengine/logger"
	"github.com/avenping/flowengine/model"
	"github.com/avenping/flowengine/rest"
	"github.com/avenping/flowengine/shard"
	"go.uber.org/zap"
)

type Agent struct {
	Config       config.Config
	container    *container.DIContiner
	dispatcher   *shard.Dispatcher
	httpServer   *rest.Server
	gatewayOut   io.Writer
	serveHttp    bool
	shutdown     bool
	shutdowns    chan struct{}
	shutdownLock sync.Mutex
	wg           sync.WaitGroup
}

// New wires the full server. The http listener is started by Start.
func New(config config.Config) (*Agent, error) {
	return newAgent(config, nil, true)
}

// NewLocal wires the engine without the http server. Log gateway output
// goes to out.
func NewLocal(config config.Config, out io.Writer) (*Agent, error) {
	return newAgent(config, out, false)
}

func newAgent(config config.Config, out io.Writer, serveHttp bool) (*Agent, error) {
	a := &Agent{
		Config:     config,
		gatewayOut: out,
		serveHttp:  serveHttp,
		shutdowns:  make(chan struct{}),
	}
	setup := []func() error{
		a.setupAnalytics,
		a.setupContainer,
		a.setupDispatcher,
	}
	if serveHttp {
		setup = append(setup, a.setupHttpServer)
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupAnalytics() error {
	if err := analytics.InitDataCollector(a.Config.AnalyticsConfig); err != nil {
		return err
	}
	return analytics.RegisterViews()
}

func (a *Agent) setupContainer() error {
	a.container = container.NewDiContainer(a.gatewayOut)
	return a.container.Init(a.Config)
}

func (a *Agent) setupDispatcher() error {
	conf := shard.DispatcherConfig{
		PartitionCount: a.Config.Dispatcher.PartitionCount,
		WorkerCount:    a.Config.Dispatcher.WorkerCount,
		WorkerCapacity: a.Config.Dispatcher.WorkerCapacity,
		TaskTimeout:    a.Config.Dispatcher.TaskTimeout,
	}
	a.dispatcher = shard.NewDispatcher(conf, a.container.GetEngine(), &a.wg)
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.dispatcher, a.container.GetEngine(), a.container.GetMetadataService(), a.container.GetMessageLog())
	return err
}

func (a *Agent) Start() error {
	a.dispatcher.Start()
	if fs := a.container.GetFileStorage(); fs != nil && a.Config.FlowSource.ReloadInterval > 0 {
		fs.StartReload(a.Config.FlowSource.ReloadInterval, &a.wg)
	}
	if !a.serveHttp {
		return nil
	}
	go func() {
		if err := a.httpServer.Start(); err != nil {
			logger.Error("http server failed", zap.Error(err))
			_ = a.Shutdown()
		}
	}()
	return nil
}

// Process runs one inbound message through its conversation's worker and
// waits for it to finish.
func (a *Agent) Process(ctx context.Context, msg model.InboundMessage) error {
	return a.dispatcher.Process(ctx, msg)
}

// EndSession drops the conversation's session, if any.
func (a *Agent) EndSession(ctx context.Context, ownerId string, conversationId string) error {
	return a.container.GetEngine().EndSession(ctx, ownerId, conversationId)
}

// Done is closed once Shutdown has begun.
func (a *Agent) Done() <-chan struct{} {
	return a.shutdowns
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	close(a.shutdowns)

	shutdown := []func() error{}
	if a.serveHttp {
		shutdown = append(shutdown, a.httpServer.Stop)
	}
	shutdown = append(shutdown,
		func() error {
			a.dispatcher.Stop()
			return nil
		},
		func() error {
			if fs := a.container.GetFileStorage(); fs != nil {
				return fs.Stop()
			}
			return nil
		},
	)
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	analytics.UnregisterViews()
	return a.container.Close()
}
