package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avenping/flowengine/logger"
	"github.com/avenping/flowengine/model"
	"github.com/oliveagle/jsonpath"
	"go.uber.org/zap"
)

const MAX_BUTTONS = 3
const MAX_LIST_ROWS = 10
const LIST_BUTTON_TEXT = "Choose"

var _ Gateway = new(HttpGateway)

// HttpGateway talks to a WhatsApp Cloud style messages endpoint:
// POST {baseURL}/{channelId}/messages with a bearer token.
type HttpGateway struct {
	baseURL    string
	token      string
	httpClient *http.Client
	idPath     *jsonpath.Compiled
}

func NewHttpGateway(baseURL string, token string, timeout time.Duration, messageIdPath string) (*HttpGateway, error) {
	idPath, err := jsonpath.Compile(messageIdPath)
	if err != nil {
		return nil, fmt.Errorf("invalid message id path %q: %w", messageIdPath, err)
	}
	return &HttpGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		idPath:     idPath,
	}, nil
}

func envelope(to string, msgType string) map[string]any {
	return map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              msgType,
	}
}

func (g *HttpGateway) SendText(ctx context.Context, channelId string, to string, body string) (string, error) {
	payload := envelope(to, "text")
	payload["text"] = map[string]any{"body": body}
	return g.post(ctx, channelId, payload)
}

func (g *HttpGateway) SendMedia(ctx context.Context, channelId string, to string, kind model.MediaKind, ref string, caption string) (string, error) {
	media := map[string]any{"link": ref}
	// audio messages have no caption
	if caption != "" && kind != model.MEDIA_AUDIO {
		media["caption"] = caption
	}
	payload := envelope(to, string(kind))
	payload[string(kind)] = media
	return g.post(ctx, channelId, payload)
}

// SendInteractive uses reply buttons for up to three options and a list
// message above that.
func (g *HttpGateway) SendInteractive(ctx context.Context, channelId string, to string, header string, body string, options []string) (string, error) {
	if len(options) > MAX_LIST_ROWS {
		return "", fmt.Errorf("%w: %d", ErrTooManyOptions, len(options))
	}
	interactive := map[string]any{
		"body": map[string]any{"text": body},
	}
	if header != "" {
		interactive["header"] = map[string]any{"type": "text", "text": header}
	}
	if len(options) <= MAX_BUTTONS {
		buttons := make([]map[string]any, 0, len(options))
		for i, label := range options {
			buttons = append(buttons, map[string]any{
				"type":  "reply",
				"reply": map[string]any{"id": optionId(i), "title": label},
			})
		}
		interactive["type"] = "button"
		interactive["action"] = map[string]any{"buttons": buttons}
	} else {
		rows := make([]map[string]any, 0, len(options))
		for i, label := range options {
			rows = append(rows, map[string]any{"id": optionId(i), "title": label})
		}
		interactive["type"] = "list"
		interactive["action"] = map[string]any{
			"button":   LIST_BUTTON_TEXT,
			"sections": []map[string]any{{"title": "Options", "rows": rows}},
		}
	}
	payload := envelope(to, "interactive")
	payload["interactive"] = interactive
	return g.post(ctx, channelId, payload)
}

func (g *HttpGateway) SendTemplate(ctx context.Context, channelId string, to string, template string, language string, params []string) (string, error) {
	parameters := make([]map[string]any, 0, len(params))
	for _, p := range params {
		parameters = append(parameters, map[string]any{"type": "text", "text": p})
	}
	payload := envelope(to, "template")
	payload["template"] = map[string]any{
		"name":     template,
		"language": map[string]any{"code": language},
		"components": []map[string]any{
			{"type": "body", "parameters": parameters},
		},
	}
	return g.post(ctx, channelId, payload)
}

func optionId(i int) string {
	return "opt-" + strconv.Itoa(i)
}

func (g *HttpGateway) post(ctx context.Context, channelId string, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	url := g.baseURL + "/" + channelId + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		logger.Error("gateway request failed", zap.String("channelId", channelId), zap.Duration("duration", time.Since(start)), zap.Error(err))
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Error("gateway rejected message", zap.String("channelId", channelId), zap.Int("status", resp.StatusCode), zap.String("response", string(respBody)))
		return "", SendError{StatusCode: resp.StatusCode, Message: providerMessage(respBody)}
	}

	var decoded any
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("decoding provider response: %w", err)
	}
	id, err := g.idPath.Lookup(decoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoMessageId, err)
	}
	str, ok := id.(string)
	if !ok || str == "" {
		return "", ErrNoMessageId
	}
	return str, nil
}

func providerMessage(body []byte) string {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil {
		if msg, err := jsonpath.JsonPathLookup(decoded, "$.error.message"); err == nil {
			if s, ok := msg.(string); ok {
				return s
			}
		}
	}
	return strings.TrimSpace(string(body))
}
