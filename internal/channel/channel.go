// Package channel defines the addressable destination a broadcast is sent to.
// A channel is a pure value: a name plus a visibility class. The visibility
// class determines the wire-name prefix and whether subscribing requires an
// authorization check.
package channel

import "strings"

// Visibility classifies who may subscribe to a channel.
type Visibility int

const (
	// Public channels are open to any client.
	Public Visibility = iota
	// Private channels require authorization.
	Private
	// Presence channels require authorization and track member identities.
	Presence
	// EncryptedPrivate channels require authorization; payload encryption is
	// handled by the transport, not by the dispatcher.
	EncryptedPrivate
)

// Wire prefixes must match subscribing clients bit-exactly.
const (
	privatePrefix          = "private-"
	presencePrefix         = "presence-"
	encryptedPrivatePrefix = "private-encrypted-"
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Private:
		return "private"
	case Presence:
		return "presence"
	case EncryptedPrivate:
		return "encrypted-private"
	default:
		return "unknown"
	}
}

// Channel is an immutable broadcast destination.
type Channel struct {
	name       string
	visibility Visibility
}

// New creates a channel with the given bare name and visibility.
// Names are not validated here; a name that itself starts with a reserved
// prefix is the caller's problem (see ParseWire).
func New(name string, visibility Visibility) Channel {
	return Channel{name: name, visibility: visibility}
}

// NewPublic creates a public channel.
func NewPublic(name string) Channel { return New(name, Public) }

// NewPrivate creates a private channel.
func NewPrivate(name string) Channel { return New(name, Private) }

// NewPresence creates a presence channel.
func NewPresence(name string) Channel { return New(name, Presence) }

// NewEncryptedPrivate creates an encrypted private channel.
func NewEncryptedPrivate(name string) Channel { return New(name, EncryptedPrivate) }

// Name returns the bare channel name without any visibility prefix.
func (c Channel) Name() string { return c.name }

// Visibility returns the channel's visibility class.
func (c Channel) Visibility() Visibility { return c.visibility }

// Guarded reports whether subscribing to the channel requires authorization.
func (c Channel) Guarded() bool { return c.visibility != Public }

// WireName returns the name used on the wire. The prefix is derived from the
// visibility, never stored.
func (c Channel) WireName() string {
	switch c.visibility {
	case Private:
		return privatePrefix + c.name
	case Presence:
		return presencePrefix + c.name
	case EncryptedPrivate:
		return encryptedPrivatePrefix + c.name
	default:
		return c.name
	}
}

func (c Channel) String() string { return c.WireName() }

// ParseWire maps a wire name back to a channel. The encrypted prefix is
// checked before the plain private prefix because the former contains the
// latter.
//
// A user-chosen bare name that already starts with a reserved prefix is
// indistinguishable from the prefixed form on the wire; callers must avoid
// such names. ParseWire resolves the ambiguity in favour of the prefixed
// reading, matching what subscribing clients do.
func ParseWire(wire string) Channel {
	switch {
	case strings.HasPrefix(wire, encryptedPrivatePrefix):
		return New(strings.TrimPrefix(wire, encryptedPrivatePrefix), EncryptedPrivate)
	case strings.HasPrefix(wire, presencePrefix):
		return New(strings.TrimPrefix(wire, presencePrefix), Presence)
	case strings.HasPrefix(wire, privatePrefix):
		return New(strings.TrimPrefix(wire, privatePrefix), Private)
	default:
		return New(wire, Public)
	}
}
