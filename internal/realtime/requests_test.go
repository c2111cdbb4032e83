package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicpaesk/killer-game/internal/model"
)

func TestDecodeRequestNormalizesGameCode(t *testing.T) {
	typ, req, err := DecodeRequest([]byte(`{"type":"join_room","payload":{"game_code":" abc234 "}}`))
	require.NoError(t, err)
	assert.Equal(t, RequestJoinRoom, typ)
	assert.Equal(t, model.GameCode("ABC234"), req.(*JoinRoomRequest).GameCode)
}

func TestDecodeRequestRoundTripsEncode(t *testing.T) {
	data, err := EncodeRequest(&ResolveKillRequest{SessionToken: "s_tok", KillerID: "p1", Confirmed: true})
	require.NoError(t, err)

	_, req, err := DecodeRequest(data)
	require.NoError(t, err)
	resolve, ok := req.(*ResolveKillRequest)
	require.True(t, ok)
	assert.True(t, resolve.Confirmed)
	assert.Equal(t, model.PlayerID("p1"), resolve.KillerID)
}

func TestDecodeRequestErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"not json", `nope`, model.ErrInvalidRequest},
		{"missing payload", `{"type":"join_room"}`, model.ErrInvalidRequest},
		{"bad game code", `{"type":"join_room","payload":{"game_code":"O0"}}`, model.ErrInvalidGameCode},
		{"bad pin", `{"type":"claim_identity","payload":{"game_code":"ABC234","name":"Al","pin":"abcd"}}`, model.ErrInvalidPIN},
		{"no session", `{"type":"claim_kill","payload":{"game_code":"ABC234"}}`, model.ErrNotIdentified},
		{"no creator token", `{"type":"start_game","payload":{"game_code":"ABC234"}}`, model.ErrNotCreator},
		{"no killer", `{"type":"resolve_kill","payload":{"session_token":"s_x"}}`, model.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeRequest([]byte(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeRequestReclaimDefersCredentialChecks(t *testing.T) {
	_, req, err := DecodeRequest([]byte(`{"type":"reclaim_identity","payload":{"game_code":"ABC234","name":"","pin":"x"}}`))
	require.NoError(t, err)
	assert.IsType(t, &ReclaimIdentityRequest{}, req)
}

func TestDecodeRequestUnknownType(t *testing.T) {
	typ, _, err := DecodeRequest([]byte(`{"type":"dance","payload":{}}`))
	assert.Equal(t, RequestType("dance"), typ)
	assert.Equal(t, model.KindValidation, model.KindOf(err))
}
