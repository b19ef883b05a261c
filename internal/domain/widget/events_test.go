package widget

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	t.Run("plain event", func(t *testing.T) {
		event, err := DecodeEvent([]byte(`{"type":"connected"}`))
		require.NoError(t, err)
		assert.Equal(t, EventConnected, event.Type)
	})

	t.Run("unwraps the double envelope", func(t *testing.T) {
		raw := []byte(`{"type":"merchant_message","data":{"type":"merchant_message","data":{"messageId":"m1","content":"hello","sender":"merchant"}}}`)
		event, err := DecodeEvent(raw)
		require.NoError(t, err)
		assert.Equal(t, EventMerchantMessage, event.Type)

		msg, err := event.MerchantMessage()
		require.NoError(t, err)
		assert.Equal(t, "m1", msg.MessageID)
		assert.Equal(t, "hello", msg.Content)
		assert.Equal(t, SenderMerchant, msg.Sender)
	})

	t.Run("single envelope with message payload stays intact", func(t *testing.T) {
		raw := []byte(`{"type":"merchant_message","data":{"messageId":"m2","content":"hi"}}`)
		event, err := DecodeEvent(raw)
		require.NoError(t, err)

		msg, err := event.MerchantMessage()
		require.NoError(t, err)
		assert.Equal(t, "m2", msg.MessageID)
	})

	t.Run("missing type is rejected", func(t *testing.T) {
		_, err := DecodeEvent([]byte(`{"data":{}}`))
		assert.Error(t, err)
	})

	t.Run("malformed payload is rejected", func(t *testing.T) {
		_, err := DecodeEvent([]byte(`{not json`))
		assert.Error(t, err)
	})
}

func TestHeartbeatFilter(t *testing.T) {
	assert.True(t, Event{Type: EventPing}.IsHeartbeat())
	assert.True(t, Event{Type: EventPong}.IsHeartbeat())
	assert.False(t, Event{Type: EventConnected}.IsHeartbeat())
	assert.False(t, Event{Type: EventMerchantMessage}.IsHeartbeat())
}

func TestMerchantMessageWrongType(t *testing.T) {
	payload, _ := json.Marshal(Message{MessageID: "m1"})
	_, err := Event{Type: EventPing, Data: payload}.MerchantMessage()
	assert.Error(t, err)
}
