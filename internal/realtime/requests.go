package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/nicpaesk/killer-game/internal/model"
)

// RequestType tags an inbound message
type RequestType string

const (
	RequestJoinRoom        RequestType = "join_room"
	RequestClaimIdentity   RequestType = "claim_identity"
	RequestReclaimIdentity RequestType = "reclaim_identity"
	RequestCancelIdentity  RequestType = "cancel_identity"
	RequestStartGame       RequestType = "start_game"
	RequestClaimKill       RequestType = "claim_kill"
	RequestResolveKill     RequestType = "resolve_kill"
)

// Envelope is the wire shape of every inbound message
type Envelope struct {
	Type    RequestType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Request is a decoded, validated inbound message
type Request interface {
	Type() RequestType
	Validate() error
}

// JoinRoomRequest subscribes the connection to a game's room
type JoinRoomRequest struct {
	GameCode model.GameCode `json:"game_code"`
}

// ClaimIdentityRequest takes an unclaimed player slot
type ClaimIdentityRequest struct {
	GameCode model.GameCode `json:"game_code"`
	Name     string         `json:"name"`
	PIN      string         `json:"pin"`
}

// ReclaimIdentityRequest recovers a slot with its PIN
type ReclaimIdentityRequest struct {
	GameCode model.GameCode `json:"game_code"`
	Name     string         `json:"name"`
	PIN      string         `json:"pin"`
}

// CancelIdentityRequest releases a claimed slot
type CancelIdentityRequest struct {
	GameCode     model.GameCode `json:"game_code"`
	SessionToken string         `json:"session_token"`
}

// StartGameRequest starts a game; only the creator may send it
type StartGameRequest struct {
	GameCode     model.GameCode `json:"game_code"`
	CreatorToken string         `json:"creator_token"`
}

// ClaimKillRequest tells the killer's target they were eliminated
type ClaimKillRequest struct {
	GameCode     model.GameCode `json:"game_code"`
	SessionToken string         `json:"session_token"`
}

// ResolveKillRequest is the target's answer to a kill claim
type ResolveKillRequest struct {
	SessionToken string         `json:"session_token"`
	KillerID     model.PlayerID `json:"killer_id"`
	Confirmed    bool           `json:"confirmed"`
}

func (JoinRoomRequest) Type() RequestType        { return RequestJoinRoom }
func (ClaimIdentityRequest) Type() RequestType   { return RequestClaimIdentity }
func (ReclaimIdentityRequest) Type() RequestType { return RequestReclaimIdentity }
func (CancelIdentityRequest) Type() RequestType  { return RequestCancelIdentity }
func (StartGameRequest) Type() RequestType       { return RequestStartGame }
func (ClaimKillRequest) Type() RequestType       { return RequestClaimKill }
func (ResolveKillRequest) Type() RequestType     { return RequestResolveKill }

func (r *JoinRoomRequest) Validate() error {
	r.GameCode = r.GameCode.Normalize()
	return model.ValidateGameCode(r.GameCode)
}

func (r *ClaimIdentityRequest) Validate() error {
	r.GameCode = r.GameCode.Normalize()
	if err := model.ValidateGameCode(r.GameCode); err != nil {
		return err
	}
	if err := model.ValidateName(r.Name); err != nil {
		return err
	}
	return model.ValidatePIN(r.PIN)
}

// Validate only checks the game code; credential problems must fail
// uniformly during reclaim itself
func (r *ReclaimIdentityRequest) Validate() error {
	r.GameCode = r.GameCode.Normalize()
	return model.ValidateGameCode(r.GameCode)
}

func (r *CancelIdentityRequest) Validate() error {
	r.GameCode = r.GameCode.Normalize()
	if err := model.ValidateGameCode(r.GameCode); err != nil {
		return err
	}
	if r.SessionToken == "" {
		return model.ErrNotIdentified
	}
	return nil
}

func (r *StartGameRequest) Validate() error {
	r.GameCode = r.GameCode.Normalize()
	if err := model.ValidateGameCode(r.GameCode); err != nil {
		return err
	}
	if r.CreatorToken == "" {
		return model.ErrNotCreator
	}
	return nil
}

func (r *ClaimKillRequest) Validate() error {
	r.GameCode = r.GameCode.Normalize()
	if err := model.ValidateGameCode(r.GameCode); err != nil {
		return err
	}
	if r.SessionToken == "" {
		return model.ErrNotIdentified
	}
	return nil
}

func (r *ResolveKillRequest) Validate() error {
	if r.SessionToken == "" {
		return model.ErrNotIdentified
	}
	if r.KillerID == "" {
		return model.ErrInvalidRequest
	}
	return nil
}

// DecodeRequest parses and validates one inbound message. The returned
// request type is set even when validation fails, so errors can name it.
func DecodeRequest(data []byte) (RequestType, Request, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, model.ErrInvalidRequest
	}

	var req Request
	switch env.Type {
	case RequestJoinRoom:
		req = &JoinRoomRequest{}
	case RequestClaimIdentity:
		req = &ClaimIdentityRequest{}
	case RequestReclaimIdentity:
		req = &ReclaimIdentityRequest{}
	case RequestCancelIdentity:
		req = &CancelIdentityRequest{}
	case RequestStartGame:
		req = &StartGameRequest{}
	case RequestClaimKill:
		req = &ClaimKillRequest{}
	case RequestResolveKill:
		req = &ResolveKillRequest{}
	default:
		return env.Type, nil, &model.Error{
			Kind:    model.KindValidation,
			Message: fmt.Sprintf("unknown request type %q", env.Type),
		}
	}

	if len(env.Payload) == 0 {
		return env.Type, nil, model.ErrInvalidRequest
	}
	if err := json.Unmarshal(env.Payload, req); err != nil {
		return env.Type, nil, model.ErrInvalidRequest
	}
	if err := req.Validate(); err != nil {
		return env.Type, nil, err
	}
	return env.Type, req, nil
}

// EncodeRequest builds the wire form of a request
func EncodeRequest(req Request) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: req.Type(), Payload: payload})
}
