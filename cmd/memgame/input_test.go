package main

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeInputEvent(t *testing.T, ev inputEvent) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, ev))
	return buf.Bytes()
}

func TestDecodeInputEvent(t *testing.T) {
	want := inputEvent{Sec: 12, Usec: 34, Type: EV_KEY, Code: KEY_2, Value: evValuePress}
	raw := encodeInputEvent(t, want)
	require.Len(t, raw, inputEventSize)

	got, err := decodeInputEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = decodeInputEvent(raw[:4])
	assert.Error(t, err)
}

func TestKeyStates_Apply(t *testing.T) {
	k := make(keyStates)

	assert.False(t, k.apply(inputEvent{Type: EV_SYN}))
	assert.True(t, k.apply(inputEvent{Type: EV_KEY, Code: KEY_1, Value: evValuePress}))
	assert.True(t, k[KEY_1])

	k.apply(inputEvent{Type: EV_KEY, Code: KEY_1, Value: evValueRepeat})
	assert.True(t, k[KEY_1], "autorepeat keeps the key down")

	k.apply(inputEvent{Type: EV_KEY, Code: KEY_1, Value: evValueRelease})
	assert.False(t, k[KEY_1])
}

func TestKeyBitSet(t *testing.T) {
	bitmap := make([]byte, keyBitmapBytes)
	bitmap[KEY_ENTER/8] |= 1 << (KEY_ENTER % 8)

	assert.True(t, keyBitSet(bitmap, KEY_ENTER))
	assert.False(t, keyBitSet(bitmap, KEY_1))
	assert.False(t, keyBitSet(bitmap[:1], KEY_ENTER), "short bitmap")
}
