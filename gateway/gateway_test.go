package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/avenping/flowengine/model"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type capture struct {
	path   string
	auth   string
	body   []byte
	status int
	reply  string
}

func newTestServer(t *testing.T, c *capture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.path = r.URL.Path
		c.auth = r.Header.Get("Authorization")
		c.body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(c.status)
		_, _ = w.Write([]byte(c.reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func okCapture() *capture {
	return &capture{status: http.StatusOK, reply: `{"messaging_product":"whatsapp","messages":[{"id":"wamid.ABC"}]}`}
}

func TestHttpGatewaySendText(t *testing.T) {
	c := okCapture()
	srv := newTestServer(t, c)
	g, err := NewHttpGateway(srv.URL+"/", "secret", time.Second, "$.messages[0].id")
	require.NoError(t, err)

	id, err := g.SendText(context.Background(), "chan-1", "15551234", "hello")
	require.NoError(t, err)
	require.Equal(t, "wamid.ABC", id)
	require.Equal(t, "/chan-1/messages", c.path)
	require.Equal(t, "Bearer secret", c.auth)
	require.Equal(t, "text", gjson.GetBytes(c.body, "type").String())
	require.Equal(t, "15551234", gjson.GetBytes(c.body, "to").String())
	require.Equal(t, "hello", gjson.GetBytes(c.body, "text.body").String())
}

func TestHttpGatewaySendMedia(t *testing.T) {
	c := okCapture()
	srv := newTestServer(t, c)
	g, err := NewHttpGateway(srv.URL, "", time.Second, "$.messages[0].id")
	require.NoError(t, err)

	_, err = g.SendMedia(context.Background(), "chan-1", "1555", model.MEDIA_IMAGE, "https://cdn/x.png", "look")
	require.NoError(t, err)
	require.Equal(t, "", c.auth)
	require.Equal(t, "image", gjson.GetBytes(c.body, "type").String())
	require.Equal(t, "https://cdn/x.png", gjson.GetBytes(c.body, "image.link").String())
	require.Equal(t, "look", gjson.GetBytes(c.body, "image.caption").String())

	_, err = g.SendMedia(context.Background(), "chan-1", "1555", model.MEDIA_AUDIO, "https://cdn/x.ogg", "ignored")
	require.NoError(t, err)
	require.False(t, gjson.GetBytes(c.body, "audio.caption").Exists())
}

func TestHttpGatewaySendInteractive(t *testing.T) {
	for scenario, tc := range map[string]struct {
		options []string
		kind    string
		count   string
		want    int64
	}{
		"buttons": {options: []string{"Yes", "No"}, kind: "button", count: "interactive.action.buttons.#", want: 2},
		"list":    {options: []string{"a", "b", "c", "d"}, kind: "list", count: "interactive.action.sections.0.rows.#", want: 4},
	} {
		t.Run(scenario, func(t *testing.T) {
			c := okCapture()
			srv := newTestServer(t, c)
			g, err := NewHttpGateway(srv.URL, "t", time.Second, "$.messages[0].id")
			require.NoError(t, err)

			_, err = g.SendInteractive(context.Background(), "chan-1", "1555", "Menu", "Pick one", tc.options)
			require.NoError(t, err)
			require.Equal(t, tc.kind, gjson.GetBytes(c.body, "interactive.type").String())
			require.Equal(t, tc.want, gjson.GetBytes(c.body, tc.count).Int())
			require.Equal(t, "Pick one", gjson.GetBytes(c.body, "interactive.body.text").String())
			require.Equal(t, "Menu", gjson.GetBytes(c.body, "interactive.header.text").String())
		})
	}
}

func TestHttpGatewayTooManyOptions(t *testing.T) {
	g, err := NewHttpGateway("http://127.0.0.1:1", "t", time.Second, "$.messages[0].id")
	require.NoError(t, err)
	options := make([]string, MAX_LIST_ROWS+1)
	for i := range options {
		options[i] = "o"
	}
	_, err = g.SendInteractive(context.Background(), "chan-1", "1555", "", "Pick", options)
	require.ErrorIs(t, err, ErrTooManyOptions)
}

func TestHttpGatewaySendTemplate(t *testing.T) {
	c := okCapture()
	srv := newTestServer(t, c)
	g, err := NewHttpGateway(srv.URL, "t", time.Second, "$.messages[0].id")
	require.NoError(t, err)

	_, err = g.SendTemplate(context.Background(), "chan-1", "agent", "support_chat_request", "en", []string{"Ann", "1555"})
	require.NoError(t, err)
	require.Equal(t, "support_chat_request", gjson.GetBytes(c.body, "template.name").String())
	require.Equal(t, "en", gjson.GetBytes(c.body, "template.language.code").String())
	require.Equal(t, "Ann", gjson.GetBytes(c.body, "template.components.0.parameters.0.text").String())
	require.Equal(t, "1555", gjson.GetBytes(c.body, "template.components.0.parameters.1.text").String())
}

func TestHttpGatewayErrors(t *testing.T) {
	c := &capture{status: http.StatusBadRequest, reply: `{"error":{"message":"invalid recipient","code":100}}`}
	srv := newTestServer(t, c)
	g, err := NewHttpGateway(srv.URL, "t", time.Second, "$.messages[0].id")
	require.NoError(t, err)

	_, err = g.SendText(context.Background(), "chan-1", "x", "hi")
	var sendErr SendError
	require.True(t, errors.As(err, &sendErr))
	require.Equal(t, http.StatusBadRequest, sendErr.StatusCode)
	require.Equal(t, "invalid recipient", sendErr.Message)

	c.status = http.StatusOK
	c.reply = `{"messages":[]}`
	_, err = g.SendText(context.Background(), "chan-1", "x", "hi")
	require.ErrorIs(t, err, ErrNoMessageId)

	_, err = NewHttpGateway(srv.URL, "t", time.Second, "messages[")
	require.Error(t, err)
}

func TestLogGateway(t *testing.T) {
	var out bytes.Buffer
	g := NewLogGateway(&out)
	id1, err := g.SendInteractive(context.Background(), "c", "u1", "", "Need help?", []string{"Yes", "No"})
	require.NoError(t, err)
	id2, err := g.SendText(context.Background(), "c", "u1", "bye")
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
	require.Contains(t, out.String(), "Need help? [Yes | No]")
	require.Contains(t, out.String(), "bye")
}

func TestRecorderFailureInjection(t *testing.T) {
	r := NewRecorder()
	boom := errors.New("boom")
	r.FailNextOf(model.OUTBOUND_MEDIA, 1, boom)

	_, err := r.SendText(context.Background(), "c", "u", "ok")
	require.NoError(t, err)
	_, err = r.SendMedia(context.Background(), "c", "u", model.MEDIA_IMAGE, "ref", "")
	require.ErrorIs(t, err, boom)
	_, err = r.SendMedia(context.Background(), "c", "u", model.MEDIA_IMAGE, "ref", "")
	require.NoError(t, err)
	require.Len(t, r.Sent(), 2)
}

func TestResolveContact(t *testing.T) {
	dir := NewStaticContacts()
	dir.Add("acc-1", "c1", Contact{DisplayName: "Ann", Phone: "1555"})
	dir.Add("acc-1", "c2", Contact{DisplayName: "Bob"})

	for scenario, tc := range map[string]struct {
		dir  ContactDirectory
		conv string
		want Contact
	}{
		"known":        {dir: dir, conv: "c1", want: Contact{DisplayName: "Ann", Phone: "1555"}},
		"partial":      {dir: dir, conv: "c2", want: Contact{DisplayName: "Bob", Phone: "c2"}},
		"unknown":      {dir: dir, conv: "c3", want: Contact{DisplayName: "c3", Phone: "c3"}},
		"no directory": {dir: nil, conv: "c4", want: Contact{DisplayName: "c4", Phone: "c4"}},
	} {
		t.Run(scenario, func(t *testing.T) {
			got, err := ResolveContact(context.Background(), tc.dir, "acc-1", tc.conv)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestLoadContacts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contacts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- ownerId: acc-1
  conversationId: c1
  displayName: Ann
  phone: "1555"
- ownerId: acc-1
  conversationId: c2
  displayName: Bob
`), 0644))

	contacts, err := LoadContacts(path)
	require.NoError(t, err)
	got, err := ResolveContact(context.Background(), contacts, "acc-1", "c2")
	require.NoError(t, err)
	require.Equal(t, Contact{DisplayName: "Bob", Phone: "c2"}, got)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("- displayName: nobody\n"), 0644))
	_, err = LoadContacts(bad)
	require.Error(t, err)

	_, err = LoadContacts(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
