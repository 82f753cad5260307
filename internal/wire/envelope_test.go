package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeAck_CarriesRequestID(t *testing.T) {
	req := require.New(t)

	raw, err := EncodeAck(7, map[string]bool{"success": true})
	req.NoError(err)
	req.JSONEq(`{"event":"ack","id":7,"data":{"success":true}}`, string(raw))
}

func TestEncode_OmitsIDForPushes(t *testing.T) {
	req := require.New(t)

	raw, err := Encode("conversations", []int{})
	req.NoError(err)
	req.JSONEq(`{"event":"conversations","data":[]}`, string(raw))
}

func TestDecode(t *testing.T) {
	req := require.New(t)

	env, err := Decode([]byte(`{"event":"send","id":3,"data":{"convId":12,"content":"hi"}}`))
	req.NoError(err)
	req.Equal("send", env.Event)
	req.True(env.NeedsAck())
	req.EqualValues(3, *env.ID)
	req.JSONEq(`{"convId":12,"content":"hi"}`, string(env.Data))

	env, err = Decode([]byte(`{"event":"leave","data":12}`))
	req.NoError(err)
	req.False(env.NeedsAck())

	_, err = Decode([]byte(`not json`))
	req.Error(err)

	_, err = Decode([]byte(`{"data":{}}`))
	req.ErrorIs(err, ErrMissingEvent)
}
