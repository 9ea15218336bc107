package model

import "time"

type InboundMessage struct {
	OwnerId        string    `json:"ownerId"`
	ConversationId string    `json:"conversationId"`
	ChannelId      string    `json:"channelId"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
}

func (m InboundMessage) ConversationKey() string {
	return m.OwnerId + ":" + m.ConversationId
}

type OutboundKind string

const OUTBOUND_TEXT OutboundKind = "text"
const OUTBOUND_MEDIA OutboundKind = "media"
const OUTBOUND_INTERACTIVE OutboundKind = "interactive"
const OUTBOUND_TEMPLATE OutboundKind = "template"

// OutboundRecord is one row of the durable message log, written once per
// message the provider accepted.
type OutboundRecord struct {
	Id                string       `json:"id"`
	ProviderMessageId string       `json:"providerMessageId"`
	OwnerId           string       `json:"ownerId"`
	ConversationId    string       `json:"conversationId"`
	ChannelId         string       `json:"channelId"`
	Recipient         string       `json:"recipient"`
	Kind              OutboundKind `json:"kind"`
	Body              string       `json:"body"`
	FlowId            string       `json:"flowId,omitempty"`
	StepId            string       `json:"stepId,omitempty"`
	CreatedAt         time.Time    `json:"createdAt"`
}
