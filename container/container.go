package container

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/avenping/flowengine/action"
	"github.com/avenping/flowengine/config"
	"github.com/avenping/flowengine/engine"
	"github.com/avenping/flowengine/gateway"
	"github.com/avenping/flowengine/logger"
	"github.com/avenping/flowengine/metadata"
	"github.com/avenping/flowengine/msglog"
	"github.com/avenping/flowengine/persistence"
	"github.com/avenping/flowengine/persistence/memory"
	rd "github.com/avenping/flowengine/persistence/redis"
	"go.uber.org/zap"
)

const MEMORY_SESSION_CLEANUP = time.Minute

var ErrUnknownComponent = errors.New("unknown component type")

// DIContiner builds the engine and its collaborators from a Config.
type DIContiner struct {
	initialized     bool
	gatewayOut      io.Writer
	redisDao        io.Closer
	sessionStore    persistence.SessionStore
	fileStorage     *metadata.FileStorage
	metadataService *metadata.Service
	gateway         gateway.Gateway
	contacts        gateway.ContactDirectory
	messageLog      msglog.Log
	executor        *action.Executor
	engine          *engine.FlowEngine
}

func (d *DIContiner) setInitialized() {
	d.initialized = true
}

// NewDiContainer returns an empty container. gatewayOut receives the
// transcript of the log gateway and may be nil.
func NewDiContainer(gatewayOut io.Writer) *DIContiner {
	return &DIContiner{
		initialized: false,
		gatewayOut:  gatewayOut,
	}
}

func (d *DIContiner) Init(conf config.Config) error {
	if err := conf.Validate(); err != nil {
		return err
	}
	if conf.StorageType == config.STORAGE_TYPE_REDIS || conf.FlowSource.Type == config.FLOW_SOURCE_REDIS {
		d.redisDao = rd.NewBaseDao(rd.Config{
			Addrs:     conf.RedisConfig.Addrs,
			Namespace: conf.RedisConfig.Namespace,
			Password:  conf.RedisConfig.Password,
			DB:        conf.RedisConfig.DB,
		})
	}
	if err := d.initSessionStore(conf); err != nil {
		return err
	}
	if err := d.initFlowStorage(conf); err != nil {
		return err
	}
	if err := d.initGateway(conf); err != nil {
		return err
	}
	if err := d.initMessageLog(conf); err != nil {
		return err
	}

	d.executor = action.NewExecutor(action.ExecutorConfig{
		Gateway:  d.gateway,
		Flows:    d.metadataService,
		Contacts: d.contacts,
		Log:      d.messageLog,
		Templates: action.SupportTemplates{
			Call:     conf.Gateway.SupportCallTemplate,
			Chat:     conf.Gateway.SupportChatTemplate,
			Language: conf.Gateway.TemplateLanguage,
		},
	})
	d.engine = engine.NewFlowEngine(d.metadataService, d.sessionStore, d.executor, conf.Engine)
	d.setInitialized()
	return nil
}

func (d *DIContiner) dao() (*rd.BaseDao, error) {
	dao, ok := d.redisDao.(*rd.BaseDao)
	if !ok {
		return nil, fmt.Errorf("%w: redis is not configured", ErrUnknownComponent)
	}
	return dao, nil
}

func (d *DIContiner) initSessionStore(conf config.Config) error {
	switch conf.StorageType {
	case config.STORAGE_TYPE_REDIS:
		dao, err := d.dao()
		if err != nil {
			return err
		}
		d.sessionStore = rd.NewRedisSessionStore(dao)
	case config.STORAGE_TYPE_INMEM:
		d.sessionStore = memory.NewMemorySessionStore(MEMORY_SESSION_CLEANUP)
	default:
		return fmt.Errorf("%w: storage %q", ErrUnknownComponent, conf.StorageType)
	}
	return nil
}

func (d *DIContiner) initFlowStorage(conf config.Config) error {
	var storage metadata.Storage
	switch conf.FlowSource.Type {
	case config.FLOW_SOURCE_FILE:
		fs, err := metadata.NewFileStorage(conf.FlowSource.Dir)
		if err != nil {
			return err
		}
		d.fileStorage = fs
		storage = fs
	case config.FLOW_SOURCE_REDIS:
		dao, err := d.dao()
		if err != nil {
			return err
		}
		storage = rd.NewRedisMetadataStorage(dao)
	default:
		return fmt.Errorf("%w: flow source %q", ErrUnknownComponent, conf.FlowSource.Type)
	}
	d.metadataService = metadata.NewService(storage, conf.FlowSource.CacheTTL)
	return nil
}

func (d *DIContiner) initGateway(conf config.Config) error {
	switch conf.Gateway.Type {
	case config.GATEWAY_TYPE_HTTP:
		gw, err := gateway.NewHttpGateway(conf.Gateway.BaseURL, conf.Gateway.Token, conf.Gateway.Timeout, conf.Gateway.MessageIdPath)
		if err != nil {
			return err
		}
		d.gateway = gw
	case config.GATEWAY_TYPE_LOG:
		d.gateway = gateway.NewLogGateway(d.gatewayOut)
	default:
		return fmt.Errorf("%w: gateway %q", ErrUnknownComponent, conf.Gateway.Type)
	}

	if conf.Gateway.ContactsFile == "" {
		d.contacts = gateway.NewStaticContacts()
		return nil
	}
	contacts, err := gateway.LoadContacts(conf.Gateway.ContactsFile)
	if err != nil {
		return err
	}
	d.contacts = contacts
	return nil
}

func (d *DIContiner) initMessageLog(conf config.Config) error {
	switch conf.MessageLog.Type {
	case config.MESSAGE_LOG_SQLITE:
		l, err := msglog.NewSqliteLog(conf.MessageLog.Path)
		if err != nil {
			return err
		}
		d.messageLog = l
	case config.MESSAGE_LOG_INMEM:
		d.messageLog = msglog.NewMemoryLog()
	default:
		return fmt.Errorf("%w: message log %q", ErrUnknownComponent, conf.MessageLog.Type)
	}
	return nil
}

func (d *DIContiner) mustBeInitialized() {
	if !d.initialized {
		panic("container not initalized")
	}
}

func (d *DIContiner) GetEngine() *engine.FlowEngine {
	d.mustBeInitialized()
	return d.engine
}

func (d *DIContiner) GetMetadataService() *metadata.Service {
	d.mustBeInitialized()
	return d.metadataService
}

// GetFileStorage returns nil unless flows are read from a directory.
func (d *DIContiner) GetFileStorage() *metadata.FileStorage {
	d.mustBeInitialized()
	return d.fileStorage
}

func (d *DIContiner) GetSessionStore() persistence.SessionStore {
	d.mustBeInitialized()
	return d.sessionStore
}

func (d *DIContiner) GetMessageLog() msglog.Log {
	d.mustBeInitialized()
	return d.messageLog
}

// Close releases the message log and the redis connection.
func (d *DIContiner) Close() error {
	var errs []error
	if d.messageLog != nil {
		errs = append(errs, d.messageLog.Close())
	}
	if d.redisDao != nil {
		errs = append(errs, d.redisDao.Close())
	}
	err := errors.Join(errs...)
	if err != nil {
		logger.Error("error closing container", zap.Error(err))
	}
	return err
}
