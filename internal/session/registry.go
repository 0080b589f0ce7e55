package session

// Registry tracks the live client for each authenticated user. It is not
// safe for concurrent use; the Hub serializes access.
type Registry struct {
	clients map[string]*Client
}

func NewRegistry() *Registry { return &Registry{clients: make(map[string]*Client)} }

// Register stores c as the user's handle and returns the handle it replaced, if any.
func (r *Registry) Register(userID string, c *Client) *Client {
	prev := r.clients[userID]
	r.clients[userID] = c
	return prev
}

func (r *Registry) Unregister(userID string) {
	delete(r.clients, userID)
}

func (r *Registry) Lookup(userID string) (*Client, bool) {
	c, ok := r.clients[userID]
	return c, ok
}

func (r *Registry) Len() int { return len(r.clients) }

func (r *Registry) Clients() []*Client {
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}
