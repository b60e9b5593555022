package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWireName(t *testing.T) {
	tests := []struct {
		name       string
		channel    Channel
		wantWire   string
		wantGuards bool
	}{
		{"public", NewPublic("orders"), "orders", false},
		{"private", NewPrivate("orders.42"), "private-orders.42", true},
		{"presence", NewPresence("room.7"), "presence-room.7", true},
		{"encrypted private", NewEncryptedPrivate("secrets"), "private-encrypted-secrets", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantWire, tt.channel.WireName())
			assert.Equal(t, tt.wantWire, tt.channel.String())
			assert.Equal(t, tt.wantGuards, tt.channel.Guarded())
		})
	}
}

func TestWireName_Injective(t *testing.T) {
	// Distinct (name, visibility) pairs must not collide on wire form.
	channels := []Channel{
		NewPublic("room.7"),
		NewPrivate("room.7"),
		NewPresence("room.7"),
		NewEncryptedPrivate("room.7"),
		NewPublic("room.8"),
	}

	seen := make(map[string]bool)
	for _, c := range channels {
		assert.False(t, seen[c.WireName()], "wire name collision for %s", c.WireName())
		seen[c.WireName()] = true
	}
}

func TestParseWire(t *testing.T) {
	tests := []struct {
		wire           string
		wantName       string
		wantVisibility Visibility
	}{
		{"orders", "orders", Public},
		{"private-orders.42", "orders.42", Private},
		{"presence-room.7", "room.7", Presence},
		{"private-encrypted-secrets", "secrets", EncryptedPrivate},
	}

	for _, tt := range tests {
		t.Run(tt.wire, func(t *testing.T) {
			ch := ParseWire(tt.wire)
			assert.Equal(t, tt.wantName, ch.Name())
			assert.Equal(t, tt.wantVisibility, ch.Visibility())
		})
	}
}

func TestParseWire_RoundTrip(t *testing.T) {
	for _, wire := range []string{"news", "private-a.b.c", "presence-lobby", "private-encrypted-x"} {
		assert.Equal(t, wire, ParseWire(wire).WireName())
	}
}

func TestParseWire_ReservedPrefixAmbiguity(t *testing.T) {
	// A bare name embedding a reserved prefix aliases the prefixed form.
	// This mirrors the wire protocol: clients cannot tell the two apart either.
	ch := NewPublic("private-sneaky")
	parsed := ParseWire(ch.WireName())
	assert.Equal(t, Private, parsed.Visibility())
	assert.Equal(t, "sneaky", parsed.Name())
}

func TestVisibilityString(t *testing.T) {
	assert.Equal(t, "public", Public.String())
	assert.Equal(t, "private", Private.String())
	assert.Equal(t, "presence", Presence.String())
	assert.Equal(t, "encrypted-private", EncryptedPrivate.String())
}
