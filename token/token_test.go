package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_PacksKindAndID(t *testing.T) {
	tok := New(KindEvent, 12)

	assert.Equal(t, KindEvent, tok.Kind())
	assert.Equal(t, uint32(12), tok.ID())
}

func TestNew_AllKinds(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		id   uint32
	}{
		{"event", KindEvent, 0},
		{"sequence", KindSequence, 3},
		{"loop", KindLoop, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := New(tt.kind, tt.id)
			require.Equal(t, tt.kind, tok.Kind())
			require.Equal(t, tt.id, tok.ID())
		})
	}
}

func TestInvalid(t *testing.T) {
	inv := Invalid()

	assert.Equal(t, KindInvalid, inv.Kind())
	assert.False(t, inv.IsValid())
}

func TestInvalid_ComparesUnequalToValidTokens(t *testing.T) {
	inv := Invalid()

	for _, kind := range []Kind{KindEvent, KindSequence, KindLoop} {
		tok := New(kind, 0)
		assert.NotEqual(t, inv, tok)
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, New(KindEvent, 1).IsValid())
	assert.False(t, Invalid().IsValid())
}

func TestLess_OrdersByKindThenID(t *testing.T) {
	event0 := New(KindEvent, 0)
	event1 := New(KindEvent, 1)
	seq0 := New(KindSequence, 0)

	assert.True(t, event0.Less(event1))
	assert.False(t, event1.Less(event0))
	assert.True(t, event1.Less(seq0), "KindEvent sorts before KindSequence regardless of id")
	assert.False(t, seq0.Less(event1))
}

func TestLess_Irreflexive(t *testing.T) {
	tok := New(KindLoop, 5)
	assert.False(t, tok.Less(tok))
}

func TestString(t *testing.T) {
	tests := []struct {
		name     string
		tok      Token
		expected string
	}{
		{"event", New(KindEvent, 12), "E12"},
		{"sequence", New(KindSequence, 3), "S3"},
		{"loop", New(KindLoop, 7), "L7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.tok.String())
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "E", KindEvent.String())
	assert.Equal(t, "S", KindSequence.String())
	assert.Equal(t, "L", KindLoop.String())
	assert.Equal(t, "?", KindInvalid.String())
}

func TestToken_ValueSemantics(t *testing.T) {
	a := New(KindEvent, 1)
	b := a
	b = New(KindEvent, 2)

	assert.NotEqual(t, a, b, "Token must be a value type: mutating b must not affect a")
}
