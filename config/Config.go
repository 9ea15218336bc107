package config

import (
	"errors"
	"time"

	"github.com/avenping/flowengine/analytics"
)

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"

type FlowSourceType string

const FLOW_SOURCE_FILE FlowSourceType = "file"
const FLOW_SOURCE_REDIS FlowSourceType = "redis"

type GatewayType string

const GATEWAY_TYPE_HTTP GatewayType = "http"
const GATEWAY_TYPE_LOG GatewayType = "log"

type MessageLogType string

const MESSAGE_LOG_SQLITE MessageLogType = "sqlite"
const MESSAGE_LOG_INMEM MessageLogType = "memory"

const DEFAULT_SESSION_TTL = 15 * time.Minute
const DEFAULT_REPROMPT_TEXT = "Please select a valid option."
const DEFAULT_MAX_AUTO_STEPS = 50
const DEFAULT_MAX_FLOW_DEPTH = 8
const DEFAULT_MAX_STEP_RETRIES = 3
const DEFAULT_PARTITION_COUNT = 271
const DEFAULT_WORKER_COUNT = 8
const DEFAULT_WORKER_CAPACITY = 512

var (
	ErrInvalidSessionTTL   = errors.New("session ttl must be positive")
	ErrInvalidMaxAutoSteps = errors.New("max auto steps must be positive")
	ErrInvalidWorkerCount  = errors.New("worker count must be positive")
	ErrInvalidPartitions   = errors.New("partition count must be >= worker count")
	ErrMissingGatewayURL   = errors.New("http gateway requires a base url")
	ErrMissingFlowDir      = errors.New("file flow source requires a directory")
)

type Config struct {
	RedisConfig     RedisStorageConfig
	HttpPort        int
	LogLevel        string
	LogDevelopment  bool
	StorageType     StorageType
	FlowSource      FlowSourceConfig
	Engine          EngineConfig
	Dispatcher      DispatcherConfig
	Gateway         GatewayConfig
	MessageLog      MessageLogConfig
	AnalyticsConfig analytics.DataCollectorConfig
}

type RedisStorageConfig struct {
	Addrs     []string
	Password  string
	DB        int
	Namespace string
}

type FlowSourceConfig struct {
	Type           FlowSourceType
	Dir            string
	ReloadInterval time.Duration
	CacheTTL       time.Duration
}

type EngineConfig struct {
	SessionTTL   time.Duration
	RepromptText string
	// FallbackText is sent to the conversation when a step fails. Empty
	// disables the fallback.
	FallbackText string
	MaxAutoSteps int
	MaxFlowDepth int
	// MaxStepRetries is how many times a failed step is re-run before the
	// session is ended.
	MaxStepRetries int
}

type DispatcherConfig struct {
	PartitionCount int
	WorkerCount    int
	WorkerCapacity int
	TaskTimeout    time.Duration
}

type GatewayConfig struct {
	Type                GatewayType
	BaseURL             string
	Token               string
	Timeout             time.Duration
	MessageIdPath       string
	SupportCallTemplate string
	SupportChatTemplate string
	TemplateLanguage    string
	// ContactsFile is an optional YAML list of known contacts used by
	// support escalation.
	ContactsFile string
}

type MessageLogConfig struct {
	Type MessageLogType
	Path string
}

func NewDefaultConfig() Config {
	return Config{
		RedisConfig: RedisStorageConfig{
			Addrs:     []string{"localhost:6379"},
			Namespace: "flowengine",
		},
		HttpPort:    8080,
		LogLevel:    "info",
		StorageType: STORAGE_TYPE_REDIS,
		FlowSource: FlowSourceConfig{
			Type:           FLOW_SOURCE_FILE,
			Dir:            "flows",
			ReloadInterval: 30 * time.Second,
			CacheTTL:       time.Minute,
		},
		Engine: EngineConfig{
			SessionTTL:     DEFAULT_SESSION_TTL,
			RepromptText:   DEFAULT_REPROMPT_TEXT,
			MaxAutoSteps:   DEFAULT_MAX_AUTO_STEPS,
			MaxFlowDepth:   DEFAULT_MAX_FLOW_DEPTH,
			MaxStepRetries: DEFAULT_MAX_STEP_RETRIES,
		},
		Dispatcher: DispatcherConfig{
			PartitionCount: DEFAULT_PARTITION_COUNT,
			WorkerCount:    DEFAULT_WORKER_COUNT,
			WorkerCapacity: DEFAULT_WORKER_CAPACITY,
			TaskTimeout:    time.Minute,
		},
		Gateway: GatewayConfig{
			Type:                GATEWAY_TYPE_LOG,
			Timeout:             10 * time.Second,
			MessageIdPath:       "$.messages[0].id",
			SupportCallTemplate: "support_call_request",
			SupportChatTemplate: "support_chat_request",
			TemplateLanguage:    "en",
		},
		MessageLog: MessageLogConfig{
			Type: MESSAGE_LOG_SQLITE,
			Path: "messages.db",
		},
	}
}

func (c Config) Validate() error {
	if c.Engine.SessionTTL <= 0 {
		return ErrInvalidSessionTTL
	}
	if c.Engine.MaxAutoSteps <= 0 {
		return ErrInvalidMaxAutoSteps
	}
	if c.Dispatcher.WorkerCount <= 0 {
		return ErrInvalidWorkerCount
	}
	if c.Dispatcher.PartitionCount < c.Dispatcher.WorkerCount {
		return ErrInvalidPartitions
	}
	if c.Gateway.Type == GATEWAY_TYPE_HTTP && c.Gateway.BaseURL == "" {
		return ErrMissingGatewayURL
	}
	if c.FlowSource.Type == FLOW_SOURCE_FILE && c.FlowSource.Dir == "" {
		return ErrMissingFlowDir
	}
	return nil
}
