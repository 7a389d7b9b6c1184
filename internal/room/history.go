package room

// history is a fixed capacity ring of chat messages, oldest first
type history struct {
	buf   []ChatMessage
	start int
	size  int
}

func newHistory(limit int) *history {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &history{buf: make([]ChatMessage, limit)}
}

func (h *history) append(msg ChatMessage) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = msg
		h.size++
		return
	}
	// full: overwrite the oldest
	h.buf[h.start] = msg
	h.start = (h.start + 1) % len(h.buf)
}

func (h *history) len() int {
	return h.size
}

// messages returns a copy in send order
func (h *history) messages() []ChatMessage {
	out := make([]ChatMessage, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}
