package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/avenping/flowengine/model"
)

var _ Gateway = new(Recorder)

type Sent struct {
	Kind      model.OutboundKind
	ChannelId string
	To        string
	Header    string
	Body      string
	MediaKind model.MediaKind
	Ref       string
	Template  string
	Language  string
	Options   []string
	Params    []string
	MessageId string
}

// Recorder keeps every accepted message in memory. FailNext makes the next
// n sends of any kind fail with err.
type Recorder struct {
	mu       sync.Mutex
	sent     []Sent
	seq      int
	failN    int
	failErr  error
	failKind model.OutboundKind
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) FailNext(n int, err error) {
	r.FailNextOf("", n, err)
}

// FailNextOf fails only sends of the given kind. An empty kind matches all.
func (r *Recorder) FailNextOf(kind model.OutboundKind, n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failN = n
	r.failErr = err
	r.failKind = kind
}

func (r *Recorder) record(s Sent) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failN > 0 && (r.failKind == "" || r.failKind == s.Kind) {
		r.failN--
		return "", r.failErr
	}
	r.seq++
	s.MessageId = fmt.Sprintf("msg-%d", r.seq)
	r.sent = append(r.sent, s)
	return s.MessageId, nil
}

func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

func (r *Recorder) Last() (Sent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Sent{}, false
	}
	return r.sent[len(r.sent)-1], true
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

func (r *Recorder) SendText(ctx context.Context, channelId string, to string, body string) (string, error) {
	return r.record(Sent{Kind: model.OUTBOUND_TEXT, ChannelId: channelId, To: to, Body: body})
}

func (r *Recorder) SendMedia(ctx context.Context, channelId string, to string, kind model.MediaKind, ref string, caption string) (string, error) {
	return r.record(Sent{Kind: model.OUTBOUND_MEDIA, ChannelId: channelId, To: to, MediaKind: kind, Ref: ref, Body: caption})
}

func (r *Recorder) SendInteractive(ctx context.Context, channelId string, to string, header string, body string, options []string) (string, error) {
	return r.record(Sent{Kind: model.OUTBOUND_INTERACTIVE, ChannelId: channelId, To: to, Header: header, Body: body, Options: append([]string(nil), options...)})
}

func (r *Recorder) SendTemplate(ctx context.Context, channelId string, to string, template string, language string, params []string) (string, error) {
	return r.record(Sent{Kind: model.OUTBOUND_TEMPLATE, ChannelId: channelId, To: to, Template: template, Language: language, Params: append([]string(nil), params...)})
}
