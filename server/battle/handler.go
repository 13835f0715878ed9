package battle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"llm-colosseum/server/elo"
	"llm-colosseum/server/store"
)

// Handler drives the per-session state machine
// (UNSTARTED -> ACTIVE -> COMPLETED) over the session store. All failures are
// converted to an Error result before crossing this boundary; nothing here
// panics or returns a raw fault to the transport.
type Handler struct {
	store      store.Store
	candidates []string
	log        *slog.Logger
}

// NewHandler builds a handler over a session/rating store and a read-only
// candidate pool snapshot.
func NewHandler(st store.Store, candidates []string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{store: st, candidates: candidates, log: log}
}

// Handle dispatches one validated instruction against the session state.
func (h *Handler) Handle(ctx context.Context, req *ChatRequest, instr Instruction) Result {
	switch instr.Kind {
	case KindStart:
		return h.start(ctx, req, instr)
	case KindContinue:
		return h.battle(ctx, req, instr)
	case KindResolve:
		return h.resolve(ctx, instr)
	}
	return Error{Message: "unknown battle instruction"}
}

func (h *Handler) start(ctx context.Context, req *ChatRequest, instr Instruction) Result {
	exists, err := h.store.SessionExists(ctx, instr.SessionID)
	if err != nil {
		return h.storeFailure("start", instr.SessionID, err)
	}
	if exists {
		return Error{Message: fmt.Sprintf("rpid %q already exists; start a new battle with a fresh rpid", instr.SessionID)}
	}

	s, created, err := h.store.GetOrCreateSession(ctx, instr.SessionID, h.candidates)
	if errors.Is(err, store.ErrPoolExhausted) {
		h.log.Error("candidate pool has fewer than two models", "rpid", instr.SessionID)
		return Error{Message: "server configuration problem: not enough candidate models for a battle"}
	}
	if err != nil {
		return h.storeFailure("start", instr.SessionID, err)
	}
	h.log.Info("battle started", "rpid", instr.SessionID, "created", created, "slot", instr.Slot)
	return h.generate(req, instr, s)
}

func (h *Handler) battle(ctx context.Context, req *ChatRequest, instr Instruction) Result {
	exists, err := h.store.SessionExists(ctx, instr.SessionID)
	if err != nil {
		return h.storeFailure("battle", instr.SessionID, err)
	}
	if !exists {
		return Error{Message: fmt.Sprintf("rpid %q does not exist; issue a start instruction first", instr.SessionID)}
	}

	// The session exists, so this read never creates.
	s, _, err := h.store.GetOrCreateSession(ctx, instr.SessionID, h.candidates)
	if err != nil {
		return h.storeFailure("battle", instr.SessionID, err)
	}
	if s.Status == store.StatusCompleted {
		return Error{Message: fmt.Sprintf("battle %q is already completed and cannot continue", instr.SessionID)}
	}
	return h.generate(req, instr, s)
}

func (h *Handler) resolve(ctx context.Context, instr Instruction) Result {
	winner := elo.WinnerFromSignal(instr.Signal)
	s, err := h.store.ResolveSession(ctx, instr.SessionID, winner)
	if errors.Is(err, store.ErrSessionNotFound) {
		return Error{Message: fmt.Sprintf("cannot record a result for rpid %q: no such battle", instr.SessionID)}
	}
	if errors.Is(err, store.ErrAlreadyResolved) {
		return Error{Message: fmt.Sprintf("battle %q is already completed", instr.SessionID)}
	}
	if err != nil {
		return h.storeFailure("win", instr.SessionID, err)
	}
	h.log.Info("battle resolved",
		"rpid", instr.SessionID, "winner", string(winner),
		"model_a", s.ModelA, "model_b", s.ModelB)
	return Win{ModelA: s.ModelA, ModelB: s.ModelB, SessionID: instr.SessionID, Winner: winner}
}

// generate rewrites the request to target the real model behind the caller's
// chosen slot. The slot label itself stays visible; the model identity does
// not leak until resolution.
func (h *Handler) generate(req *ChatRequest, instr Instruction, s store.Session) Result {
	realModel := s.ModelA
	if instr.Slot == elo.LabelB {
		realModel = s.ModelB
	}
	body, err := req.Rewrite(realModel)
	if err != nil {
		h.log.Error("request rewrite failed", "rpid", instr.SessionID, "err", err)
		return Error{Message: "internal error: could not prepare the generation request"}
	}
	h.log.Info("slot mapped to model", "rpid", instr.SessionID, "slot", instr.Slot, "model", realModel)
	return Generate{Body: body, DisplayLabel: instr.Slot}
}

// storeFailure logs full detail and surfaces a generic message; persistence
// problems never leak driver errors to the caller.
func (h *Handler) storeFailure(cmd, id string, err error) Result {
	h.log.Error("store operation failed", "cmd", cmd, "rpid", id, "err", err)
	return Error{Message: "internal error: battle state is temporarily unavailable"}
}
