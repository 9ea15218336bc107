package action

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avenping/flowengine/gateway"
	"github.com/avenping/flowengine/metadata"
	"github.com/avenping/flowengine/model"
	"github.com/avenping/flowengine/msglog"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	gw       *gateway.Recorder
	log      msglog.Log
	contacts *gateway.StaticContacts
	exec     *Executor
}

func newFixture(flows ...*model.FlowDefinition) *fixture {
	f := &fixture{
		gw:       gateway.NewRecorder(),
		log:      msglog.NewMemoryLog(),
		contacts: gateway.NewStaticContacts(),
	}
	f.exec = NewExecutor(ExecutorConfig{
		Gateway:   f.gw,
		Flows:     metadata.NewMemoryStorage(flows...),
		Contacts:  f.contacts,
		Log:       f.log,
		Templates: SupportTemplates{Call: "support_call", Chat: "support_chat", Language: "en"},
		Clock:     func() time.Time { return testNow },
	})
	return f
}

var req = Request{OwnerId: "acc-1", ConversationId: "15551234", ChannelId: "chan-1", FlowId: "MAIN"}

func TestMediaStep(t *testing.T) {
	f := newFixture()
	res := f.exec.Execute(context.Background(), &model.MediaMessage{Id: "M1", Kind: model.MEDIA_VIDEO, MediaRef: "https://cdn/v.mp4", Caption: "watch"}, req)
	require.True(t, res.Success)
	require.False(t, res.ShouldSuspend)

	sent, ok := f.gw.Last()
	require.True(t, ok)
	require.Equal(t, model.OUTBOUND_MEDIA, sent.Kind)
	require.Equal(t, model.MEDIA_VIDEO, sent.MediaKind)
	require.Equal(t, "https://cdn/v.mp4", sent.Ref)
	require.Equal(t, "watch", sent.Body)
	require.Equal(t, "15551234", sent.To)
	require.Equal(t, "chan-1", sent.ChannelId)

	recs, err := f.log.List(context.Background(), "acc-1", "15551234", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, sent.MessageId, recs[0].ProviderMessageId)
	require.Equal(t, "MAIN", recs[0].FlowId)
	require.Equal(t, "M1", recs[0].StepId)
	require.Equal(t, testNow, recs[0].CreatedAt)
}

func TestInteractiveStep(t *testing.T) {
	for scenario, tc := range map[string]struct {
		step     *model.InteractiveMessage
		kind     model.OutboundKind
		suspends bool
	}{
		"plain text": {
			step: &model.InteractiveMessage{Id: "I1", Body: "Thanks!"},
			kind: model.OUTBOUND_TEXT,
		},
		"with options": {
			step:     &model.InteractiveMessage{Id: "I2", Body: "Need help?", Options: []model.ReplyOption{{Label: "Yes", Next: "S2"}, {Label: "No"}}},
			kind:     model.OUTBOUND_INTERACTIVE,
			suspends: true,
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			f := newFixture()
			res := f.exec.Execute(context.Background(), tc.step, req)
			require.True(t, res.Success)
			require.Equal(t, tc.suspends, res.ShouldSuspend)
			sent, ok := f.gw.Last()
			require.True(t, ok)
			require.Equal(t, tc.kind, sent.Kind)
			require.Equal(t, tc.step.Body, sent.Body)
			if tc.suspends {
				require.Equal(t, []string{"Yes", "No"}, sent.Options)
			}
		})
	}
}

func TestSendFailure(t *testing.T) {
	f := newFixture()
	boom := errors.New("provider down")
	f.gw.FailNext(1, boom)
	res := f.exec.Execute(context.Background(), &model.InteractiveMessage{Id: "I1", Body: "x", Options: []model.ReplyOption{{Label: "a"}}}, req)
	require.False(t, res.Success)
	require.False(t, res.ShouldSuspend)
	require.ErrorIs(t, res.Err, boom)

	recs, _ := f.log.List(context.Background(), "acc-1", "15551234", 0)
	require.Empty(t, recs)
}

type failingLog struct {
	msglog.Log
}

func (failingLog) Record(ctx context.Context, rec model.OutboundRecord) error {
	return errors.New("disk full")
}

func TestLogFailureDoesNotFailStep(t *testing.T) {
	gw := gateway.NewRecorder()
	exec := NewExecutor(ExecutorConfig{Gateway: gw, Log: failingLog{}})
	res := exec.Execute(context.Background(), &model.InteractiveMessage{Id: "I1", Body: "hello"}, req)
	require.True(t, res.Success)
	require.Len(t, gw.Sent(), 1)
}

func flow(id string, status model.FlowStatus) *model.FlowDefinition {
	return &model.FlowDefinition{
		Id:      id,
		OwnerId: "acc-1",
		Status:  status,
		Steps:   []model.Step{&model.InteractiveMessage{Id: "E1", Body: "entry"}},
	}
}

func TestNestedFlowStep(t *testing.T) {
	f := newFixture(flow("ORDER", model.FLOW_STATUS_ACTIVE), flow("OLD", model.FLOW_STATUS_INACTIVE))

	res := f.exec.Execute(context.Background(), &model.NestedFlowInvoke{Id: "N1", TargetFlowId: "ORDER"}, req)
	require.True(t, res.Success)
	require.NotNil(t, res.Nested)
	require.Equal(t, "ORDER", res.Nested.Id)
	require.Empty(t, f.gw.Sent())

	for scenario, target := range map[string]string{
		"missing":  "NOPE",
		"inactive": "OLD",
	} {
		t.Run(scenario, func(t *testing.T) {
			res := f.exec.Execute(context.Background(), &model.NestedFlowInvoke{Id: "N1", TargetFlowId: target}, req)
			require.False(t, res.Success)
			require.Nil(t, res.Nested)
			require.ErrorIs(t, res.Err, ErrNestedFlowUnavailable)
		})
	}
}

type downFlows struct {
	metadata.Storage
}

func (downFlows) GetFlowById(ctx context.Context, flowId string) (*model.FlowDefinition, error) {
	return nil, errors.New("flow store down")
}

func TestNestedFlowStepStoreOutage(t *testing.T) {
	exec := NewExecutor(ExecutorConfig{Gateway: gateway.NewRecorder(), Flows: downFlows{}})
	res := exec.Execute(context.Background(), &model.NestedFlowInvoke{Id: "N1", TargetFlowId: "ORDER"}, req)
	require.False(t, res.Success)
	require.Error(t, res.Err)
	require.NotErrorIs(t, res.Err, ErrNestedFlowUnavailable)
}

func TestSupportStep(t *testing.T) {
	for scenario, tc := range map[string]struct {
		contact  *gateway.Contact
		kind     model.EscalationKind
		template string
		params   []string
	}{
		"known contact chat": {
			contact:  &gateway.Contact{DisplayName: "Ann", Phone: "+1 555 1234"},
			kind:     model.ESCALATION_CHAT,
			template: "support_chat",
			params:   []string{"Ann", "+1 555 1234"},
		},
		"unknown contact call": {
			kind:     model.ESCALATION_CALL,
			template: "support_call",
			params:   []string{"15551234", "15551234"},
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			f := newFixture()
			if tc.contact != nil {
				f.contacts.Add("acc-1", "15551234", *tc.contact)
			}
			res := f.exec.Execute(context.Background(), &model.SupportEscalation{Id: "E1", AgentPhone: "15550009999", Kind: tc.kind}, req)
			require.True(t, res.Success)
			require.False(t, res.ShouldSuspend)

			sent, ok := f.gw.Last()
			require.True(t, ok)
			require.Equal(t, model.OUTBOUND_TEMPLATE, sent.Kind)
			require.Equal(t, "15550009999", sent.To)
			require.Equal(t, tc.template, sent.Template)
			require.Equal(t, "en", sent.Language)
			require.Equal(t, tc.params, sent.Params)
		})
	}
}

func TestSupportStepWithoutTemplate(t *testing.T) {
	exec := NewExecutor(ExecutorConfig{Gateway: gateway.NewRecorder()})
	res := exec.Execute(context.Background(), &model.SupportEscalation{Id: "E1", AgentPhone: "1", Kind: model.ESCALATION_CHAT}, req)
	require.False(t, res.Success)
	require.ErrorIs(t, res.Err, ErrNoTemplate)
}

type alienStep struct{ model.Step }

func TestUnsupportedStep(t *testing.T) {
	f := newFixture()
	res := f.exec.Execute(context.Background(), alienStep{}, req)
	require.False(t, res.Success)
	require.ErrorIs(t, res.Err, ErrUnsupportedStep)
}
