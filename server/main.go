package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/avenping/flowengine/agent"
	"github.com/avenping/flowengine/analytics"
	"github.com/avenping/flowengine/config"
	"github.com/avenping/flowengine/logger"
	"github.com/avenping/flowengine/model"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "FLOWENGINE"

type cfg struct {
	config.Config
}
type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	d := config.NewDefaultConfig()
	f := cmd.PersistentFlags()
	f.String("config-file", "", "Path to config file.")
	f.String("redis-addr", strings.Join(d.RedisConfig.Addrs, ","), "comma separated list of redis host:port")
	f.String("redis-password", "", "redis password")
	f.Int("redis-db", 0, "redis database")
	f.String("namespace", d.RedisConfig.Namespace, "namespace used in storage")
	f.Int("http-port", d.HttpPort, "http port for rest endpoints")
	f.String("log-level", d.LogLevel, "log level: debug, info, warn, error")
	f.Bool("log-development", false, "human readable development logging")
	f.String("storage-impl", string(d.StorageType), "session storage: redis or memory")
	f.String("flow-source", string(d.FlowSource.Type), "flow documents source: file or redis")
	f.String("flow-dir", d.FlowSource.Dir, "directory of .json/.yaml flow files")
	f.Duration("flow-reload-interval", d.FlowSource.ReloadInterval, "how often the flow directory is re-read, 0 disables")
	f.Duration("flow-cache-ttl", d.FlowSource.CacheTTL, "how long flow lookups are cached")
	f.Duration("session-ttl", d.Engine.SessionTTL, "sliding session expiry")
	f.String("reprompt-text", d.Engine.RepromptText, "reply sent when no option matches")
	f.String("fallback-text", "", "reply sent when a step fails, empty disables")
	f.Int("max-auto-steps", d.Engine.MaxAutoSteps, "steps executed per inbound message before the session is ended")
	f.Int("max-flow-depth", d.Engine.MaxFlowDepth, "maximum nested flow depth")
	f.Int("max-step-retries", d.Engine.MaxStepRetries, "re-runs of a failed step before the session is ended")
	f.Int("partitions", d.Dispatcher.PartitionCount, "conversation partitions")
	f.Int("workers", d.Dispatcher.WorkerCount, "conversation workers")
	f.Int("worker-capacity", d.Dispatcher.WorkerCapacity, "queued messages per worker")
	f.Duration("task-timeout", d.Dispatcher.TaskTimeout, "processing deadline for one inbound message")
	f.String("gateway", string(d.Gateway.Type), "channel gateway: http or log")
	f.String("gateway-url", "", "base url of the messaging provider")
	f.String("gateway-token", "", "bearer token of the messaging provider")
	f.Duration("gateway-timeout", d.Gateway.Timeout, "provider request timeout")
	f.String("message-id-path", d.Gateway.MessageIdPath, "jsonpath of the message id in provider responses")
	f.String("support-call-template", d.Gateway.SupportCallTemplate, "template sent for call escalations")
	f.String("support-chat-template", d.Gateway.SupportChatTemplate, "template sent for chat escalations")
	f.String("template-language", d.Gateway.TemplateLanguage, "language code of escalation templates")
	f.String("contacts-file", "", "yaml list of known contacts")
	f.String("message-log", string(d.MessageLog.Type), "outbound message log: sqlite or memory")
	f.String("message-log-path", d.MessageLog.Path, "sqlite database file")
	f.String("analytics-file", "", "file receiving step analytics, empty disables")
	return viper.BindPFlags(f)
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	// a missing .env is fine
	_ = godotenv.Load()
	viper.SetEnvPrefix(ENV_PREFIX)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configFile := viper.GetString("config-file")
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err = viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return err
			}
		}
	}

	c.cfg.Config = config.NewDefaultConfig()
	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Password = viper.GetString("redis-password")
	c.cfg.RedisConfig.DB = viper.GetInt("redis-db")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.LogLevel = viper.GetString("log-level")
	c.cfg.LogDevelopment = viper.GetBool("log-development")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.FlowSource.Type = config.FlowSourceType(viper.GetString("flow-source"))
	c.cfg.FlowSource.Dir = viper.GetString("flow-dir")
	c.cfg.FlowSource.ReloadInterval = viper.GetDuration("flow-reload-interval")
	c.cfg.FlowSource.CacheTTL = viper.GetDuration("flow-cache-ttl")
	c.cfg.Engine.SessionTTL = viper.GetDuration("session-ttl")
	c.cfg.Engine.RepromptText = viper.GetString("reprompt-text")
	c.cfg.Engine.FallbackText = viper.GetString("fallback-text")
	c.cfg.Engine.MaxAutoSteps = viper.GetInt("max-auto-steps")
	c.cfg.Engine.MaxFlowDepth = viper.GetInt("max-flow-depth")
	c.cfg.Engine.MaxStepRetries = viper.GetInt("max-step-retries")
	c.cfg.Dispatcher.PartitionCount = viper.GetInt("partitions")
	c.cfg.Dispatcher.WorkerCount = viper.GetInt("workers")
	c.cfg.Dispatcher.WorkerCapacity = viper.GetInt("worker-capacity")
	c.cfg.Dispatcher.TaskTimeout = viper.GetDuration("task-timeout")
	c.cfg.Gateway.Type = config.GatewayType(viper.GetString("gateway"))
	c.cfg.Gateway.BaseURL = viper.GetString("gateway-url")
	c.cfg.Gateway.Token = viper.GetString("gateway-token")
	c.cfg.Gateway.Timeout = viper.GetDuration("gateway-timeout")
	c.cfg.Gateway.MessageIdPath = viper.GetString("message-id-path")
	c.cfg.Gateway.SupportCallTemplate = viper.GetString("support-call-template")
	c.cfg.Gateway.SupportChatTemplate = viper.GetString("support-chat-template")
	c.cfg.Gateway.TemplateLanguage = viper.GetString("template-language")
	c.cfg.Gateway.ContactsFile = viper.GetString("contacts-file")
	c.cfg.MessageLog.Type = config.MessageLogType(viper.GetString("message-log"))
	c.cfg.MessageLog.Path = viper.GetString("message-log-path")
	if file := viper.GetString("analytics-file"); file != "" {
		c.cfg.AnalyticsConfig = analytics.DataCollectorConfig{
			FileName:      file,
			CollectorType: analytics.LOG_FILE_DATA_COLLECTOR,
		}
	}

	if err = logger.Init(c.cfg.LogLevel, c.cfg.LogDevelopment); err != nil {
		return err
	}
	return c.cfg.Validate()
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	agent, err := agent.New(c.cfg.Config)
	if err != nil {
		return err
	}
	if err = agent.Start(); err != nil {
		return err
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-agent.Done():
	}
	return agent.Shutdown()
}

func (c *cli) chat(cmd *cobra.Command, args []string) error {
	ownerId, _ := cmd.Flags().GetString("owner")
	conversationId, _ := cmd.Flags().GetString("conversation")
	channelId, _ := cmd.Flags().GetString("channel")
	persist, _ := cmd.Flags().GetBool("persist")

	conf := c.cfg.Config
	conf.Gateway.Type = config.GATEWAY_TYPE_LOG
	if !persist {
		conf.StorageType = config.STORAGE_TYPE_INMEM
		conf.MessageLog.Type = config.MESSAGE_LOG_INMEM
	}
	out := cmd.OutOrStdout()
	a, err := agent.NewLocal(conf, out)
	if err != nil {
		return err
	}
	if err = a.Start(); err != nil {
		return err
	}
	defer a.Shutdown()

	fmt.Fprintf(out, "chatting as %s with %s, /reset ends the session, /quit exits\n", conversationId, ownerId)
	ctx := context.Background()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for fmt.Fprint(out, "> "); scanner.Scan(); fmt.Fprint(out, "> ") {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit":
			return nil
		case "/reset":
			if err := a.EndSession(ctx, ownerId, conversationId); err != nil {
				fmt.Fprintf(out, "reset failed: %v\n", err)
			}
			continue
		}
		msg := model.InboundMessage{
			OwnerId:        ownerId,
			ConversationId: conversationId,
			ChannelId:      channelId,
			Text:           line,
			Timestamp:      time.Now().UTC(),
		}
		if err := a.Process(ctx, msg); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:               "flowengine",
		Short:             "Conversational flow engine for messaging channels",
		PersistentPreRunE: cli.setupConfig,
		RunE:              cli.run,
		SilenceUsage:      true,
	}
	chat := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the configured flows from the terminal",
		RunE:  cli.chat,
	}
	chat.Flags().String("owner", "acc-1", "owner account id")
	chat.Flags().String("conversation", "local", "conversation id of the terminal user")
	chat.Flags().String("channel", "terminal", "channel id")
	chat.Flags().Bool("persist", false, "keep the configured session storage and message log")
	cmd.AddCommand(chat)

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
