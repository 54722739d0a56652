package nemochat

// ChatRequest is the single outbound request of a generation.
type ChatRequest struct {
	// Messages contains the conversation history in log order.
	// The in-progress placeholder is never included.
	Messages []WireMessage `json:"messages"`

	// Settings are the model parameters the relay should use
	Settings ModelParameters `json:"settings"`
}
