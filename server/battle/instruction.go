// Package battle implements the battle protocol: parsing the inbound
// instruction out of a chat request, driving a session through its
// start -> continue -> resolve lifecycle, and producing a tagged result for
// the transport layer to render.
package battle

import (
	"encoding/json"
	"fmt"

	"llm-colosseum/server/elo"
)

// contextType is the sentinel a battle request must carry in its side channel.
const contextType = "battle_simulation"

// Kind discriminates the closed instruction set.
type Kind int

const (
	KindStart Kind = iota + 1
	KindContinue
	KindResolve
)

// Instruction is the validated, strictly-typed form of the request's
// side-channel metadata. Loose nested fields are checked once, here, and
// never reach the handler.
type Instruction struct {
	SessionID string
	Kind      Kind
	Slot      string   // start/continue: "Assistant A" or "Assistant B"
	Signal    []string // resolve: 0 or 1 slot labels (longer lists normalize to a tie)
}

// ValidationError marks malformed or missing instruction fields. Its message
// is safe to surface to the caller.
type ValidationError struct{ msg string }

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// extraBody mirrors the wire layout of the instruction side channel. Raw
// fields distinguish absent from invalid.
type extraBody struct {
	BattleModeActive bool            `json:"battle_mode_active"`
	ContextType      string          `json:"context_type"`
	RPID             json.RawMessage `json:"rpid"`
	StartModels      json.RawMessage `json:"start_models"`
	BattleModels     json.RawMessage `json:"battle_models"`
	WinModels        json.RawMessage `json:"win_models"`
}

func parseInstruction(raw json.RawMessage) (Instruction, error) {
	var eb extraBody
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &eb); err != nil {
			return Instruction{}, validationErrorf("malformed 'extra_body': %v", err)
		}
	}
	if !eb.BattleModeActive || eb.ContextType != contextType {
		return Instruction{}, validationErrorf("malformed request: missing 'battle_mode_active' or 'context_type' mismatch")
	}

	var rpid string
	if err := json.Unmarshal(eb.RPID, &rpid); err != nil || rpid == "" {
		return Instruction{}, validationErrorf("invalid session: 'rpid' field missing or not a string")
	}

	// Resolution takes precedence over generation instructions.
	if eb.WinModels != nil {
		signal, err := decodeSignal(eb.WinModels)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{SessionID: rpid, Kind: KindResolve, Signal: signal}, nil
	}

	if eb.StartModels != nil {
		slot, err := decodeSlot("start_models", eb.StartModels)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{SessionID: rpid, Kind: KindStart, Slot: slot}, nil
	}
	if eb.BattleModels != nil {
		slot, err := decodeSlot("battle_models", eb.BattleModels)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{SessionID: rpid, Kind: KindContinue, Slot: slot}, nil
	}

	return Instruction{}, validationErrorf("battle request carries no instruction (win_models, start_models, or battle_models)")
}

// decodeSignal accepts any JSON list; non-string members normalize to values
// that cannot match a slot label, which the winner mapping counts as a tie.
func decodeSignal(raw json.RawMessage) ([]string, error) {
	var anyList []any
	if err := json.Unmarshal(raw, &anyList); err != nil {
		return nil, validationErrorf("'win_models' must be a list")
	}
	signal := make([]string, len(anyList))
	for i, v := range anyList {
		if s, ok := v.(string); ok {
			signal[i] = s
		}
	}
	return signal, nil
}

func decodeSlot(field string, raw json.RawMessage) (string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil || len(list) != 1 {
		return "", validationErrorf("invalid '%s': expected a list holding exactly one assistant slot", field)
	}
	if list[0] != elo.LabelA && list[0] != elo.LabelB {
		return "", validationErrorf("invalid '%s': unknown assistant slot %q", field, list[0])
	}
	return list[0], nil
}
