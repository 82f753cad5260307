package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalPair(t *testing.T) {
	req := require.New(t)

	low, high := CanonicalPair(9, 2)
	req.Equal(UserID(2), low)
	req.Equal(UserID(9), high)

	low, high = CanonicalPair(2, 9)
	req.Equal(UserID(2), low)
	req.Equal(UserID(9), high)
}

func TestRoomKey_RoundTrip(t *testing.T) {
	req := require.New(t)

	req.Equal("45", ConversationID(45).RoomKey())

	id, ok := ParseRoomKey("45")
	req.True(ok)
	req.Equal(ConversationID(45), id)

	_, ok = ParseRoomKey("b1f3c2e0-uuid")
	req.False(ok)
	_, ok = ParseRoomKey("-3")
	req.False(ok)
}

func TestConversationID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ConversationID
		wantErr bool
	}{
		{"number", `12`, 12, false},
		{"numeric string", `"12"`, 12, false},
		{"word", `"twelve"`, 0, true},
		{"fraction", `1.5`, 0, true},
		{"null", `null`, 0, true},
		{"object", `{}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id ConversationID
			err := json.Unmarshal([]byte(tt.input), &id)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, id)
		})
	}
}
