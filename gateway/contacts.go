package gateway

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

var _ ContactDirectory = new(StaticContacts)

// StaticContacts is an in-memory directory keyed by owner and conversation.
type StaticContacts struct {
	mu       sync.RWMutex
	contacts map[string]Contact
}

func NewStaticContacts() *StaticContacts {
	return &StaticContacts{contacts: make(map[string]Contact)}
}

func (s *StaticContacts) Add(ownerId string, conversationId string, contact Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[ownerId+":"+conversationId] = contact
}

func (s *StaticContacts) Lookup(ctx context.Context, ownerId string, conversationId string) (*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[ownerId+":"+conversationId]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

type contactEntry struct {
	OwnerId        string `yaml:"ownerId"`
	ConversationId string `yaml:"conversationId"`
	DisplayName    string `yaml:"displayName"`
	Phone          string `yaml:"phone"`
}

// LoadContacts reads a YAML (or JSON) list of contacts into a new
// directory.
func LoadContacts(path string) (*StaticContacts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []contactEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("contacts %s: %w", path, err)
	}
	s := NewStaticContacts()
	for i, e := range entries {
		if e.OwnerId == "" || e.ConversationId == "" {
			return nil, fmt.Errorf("contacts %s: entry %d needs ownerId and conversationId", path, i)
		}
		s.Add(e.OwnerId, e.ConversationId, Contact{DisplayName: e.DisplayName, Phone: e.Phone})
	}
	return s, nil
}

// ResolveContact falls back to the conversation id for any field the
// directory cannot supply, including on lookup errors.
func ResolveContact(ctx context.Context, dir ContactDirectory, ownerId string, conversationId string) (Contact, error) {
	fallback := Contact{DisplayName: conversationId, Phone: conversationId}
	if dir == nil {
		return fallback, nil
	}
	c, err := dir.Lookup(ctx, ownerId, conversationId)
	if err != nil {
		return fallback, err
	}
	if c == nil {
		return fallback, nil
	}
	out := *c
	if out.DisplayName == "" {
		out.DisplayName = conversationId
	}
	if out.Phone == "" {
		out.Phone = conversationId
	}
	return out, nil
}
