package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodePlainText(t *testing.T) {
	resp := Decode([]byte("  just some prose  "))

	assert.Equal(t, KindText, resp.Kind)
	assert.Equal(t, "just some prose", resp.Extract())
}

func TestDecodeStructured(t *testing.T) {
	resp := Decode([]byte(`{"response": "the report", "model": "x"}`))

	assert.Equal(t, KindStructured, resp.Kind)
	assert.Equal(t, "the report", resp.Extract())
}

func TestDecodeSequence(t *testing.T) {
	resp := Decode([]byte(`["part one", {"text": "part two"}, 3]`))

	assert.Equal(t, KindSequence, resp.Kind)
	assert.Equal(t, "part one\n\npart two\n\n3", resp.Extract())
}

func TestExtractKeyPrecedence(t *testing.T) {
	resp := Decode([]byte(`{"content": "c", "text": "t", "response": "r"}`))
	assert.Equal(t, "r", resp.Extract())

	resp = Decode([]byte(`{"content": "c", "text": "t"}`))
	assert.Equal(t, "t", resp.Extract())

	resp = Decode([]byte(`{"content": "c"}`))
	assert.Equal(t, "c", resp.Extract())
}

func TestExtractStructuredWithoutContentKeys(t *testing.T) {
	resp := Decode([]byte(`{"status": "ok"}`))

	// No conventional key, so the object is stringified rather than lost.
	assert.Equal(t, `{"status":"ok"}`, resp.Extract())
}

func TestDecodeBareJSONString(t *testing.T) {
	resp := Decode([]byte(`"quoted reply"`))

	assert.Equal(t, KindText, resp.Kind)
	assert.Equal(t, "quoted reply", resp.Extract())
}

func TestEmpty(t *testing.T) {
	assert.True(t, TextResponse("").Empty())
	assert.True(t, TextResponse("   \n").Empty())
	assert.False(t, TextResponse("x").Empty())
	assert.True(t, Decode(nil).Empty())
}
