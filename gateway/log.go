package gateway

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/avenping/flowengine/logger"
	"github.com/avenping/flowengine/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var _ Gateway = new(LogGateway)

// LogGateway accepts every message, logs it and optionally echoes a readable
// rendering to out. Provider ids are random uuids.
type LogGateway struct {
	mu  sync.Mutex
	out io.Writer
}

func NewLogGateway(out io.Writer) *LogGateway {
	return &LogGateway{out: out}
}

func (g *LogGateway) emit(format string, args ...any) {
	if g.out == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	fmt.Fprintf(g.out, format+"\n", args...)
}

func (g *LogGateway) SendText(ctx context.Context, channelId string, to string, body string) (string, error) {
	id := uuid.NewString()
	logger.Info("send text", zap.String("channelId", channelId), zap.String("to", to), zap.String("body", body), zap.String("messageId", id))
	g.emit("[%s] %s", to, body)
	return id, nil
}

func (g *LogGateway) SendMedia(ctx context.Context, channelId string, to string, kind model.MediaKind, ref string, caption string) (string, error) {
	id := uuid.NewString()
	logger.Info("send media", zap.String("channelId", channelId), zap.String("to", to), zap.String("kind", string(kind)), zap.String("ref", ref), zap.String("messageId", id))
	g.emit("[%s] <%s %s> %s", to, kind, ref, caption)
	return id, nil
}

func (g *LogGateway) SendInteractive(ctx context.Context, channelId string, to string, header string, body string, options []string) (string, error) {
	id := uuid.NewString()
	logger.Info("send interactive", zap.String("channelId", channelId), zap.String("to", to), zap.String("body", body), zap.Strings("options", options), zap.String("messageId", id))
	if header != "" {
		g.emit("[%s] %s", to, header)
	}
	g.emit("[%s] %s [%s]", to, body, strings.Join(options, " | "))
	return id, nil
}

func (g *LogGateway) SendTemplate(ctx context.Context, channelId string, to string, template string, language string, params []string) (string, error) {
	id := uuid.NewString()
	logger.Info("send template", zap.String("channelId", channelId), zap.String("to", to), zap.String("template", template), zap.Strings("params", params), zap.String("messageId", id))
	g.emit("[%s] template %s(%s)", to, template, strings.Join(params, ", "))
	return id, nil
}
