package battle

import "llm-colosseum/server/elo"

// Result is the closed outcome union the handler returns to the transport
// layer. Exactly one of Generate, Win, or Error comes back from Handle.
type Result interface{ isResult() }

// Generate instructs the transport to forward Body to the generation backend
// and present the response under DisplayLabel.
type Generate struct {
	Body         []byte
	DisplayLabel string
}

// Win confirms a recorded battle result, unmasking both models. Winner is
// the canonical tag applied to the rating update.
type Win struct {
	ModelA    string
	ModelB    string
	SessionID string
	Winner    elo.Tag
}

// Error carries a caller-safe message; the transport renders it without
// contacting the backend.
type Error struct {
	Message string
}

func (Generate) isResult() {}
func (Win) isResult()      {}
func (Error) isResult()    {}
