package websocket

import "sync"

// roomSet tracks conversation-room membership with a forward index
// (conversation -> members) and a reverse index (client -> conversations) so
// that disconnect can leave every room without scanning.
type roomSet struct {
	mu             sync.RWMutex
	byConversation map[string]map[*Client]bool
	byClient       map[*Client]map[string]bool
}

func newRoomSet() *roomSet {
	return &roomSet{
		byConversation: make(map[string]map[*Client]bool),
		byClient:       make(map[*Client]map[string]bool),
	}
}

// join adds a client to a conversation room. Joining twice is the same as
// joining once.
func (r *roomSet) join(client *Client, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byConversation[conversationID] == nil {
		r.byConversation[conversationID] = make(map[*Client]bool)
	}
	r.byConversation[conversationID][client] = true

	if r.byClient[client] == nil {
		r.byClient[client] = make(map[string]bool)
	}
	r.byClient[client][conversationID] = true
}

// leaveAll removes a client from every room it joined. Rooms left empty are
// reclaimed.
func (r *roomSet) leaveAll(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for conversationID := range r.byClient[client] {
		if members, ok := r.byConversation[conversationID]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(r.byConversation, conversationID)
			}
		}
	}
	delete(r.byClient, client)
}

// members returns a snapshot of the room's membership.
func (r *roomSet) members(conversationID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.byConversation[conversationID]
	if len(members) == 0 {
		return nil
	}
	result := make([]*Client, 0, len(members))
	for client := range members {
		result = append(result, client)
	}
	return result
}

// contains reports whether the client has joined the conversation.
func (r *roomSet) contains(client *Client, conversationID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byClient[client][conversationID]
}
