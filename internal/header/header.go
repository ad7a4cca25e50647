// Package header provides an ordered store of FITS header cards keyed by name.
package header

import (
	"fmt"
	"strconv"
	"strings"
)

// Card is a single header keyword with its value and optional comment.
type Card struct {
	Name    string
	Value   any
	Comment string
}

// Header keeps cards in insertion order and indexes them by upper-cased name.
type Header struct {
	cards []Card
	index map[string]int
}

// New creates a header from the given cards. Later duplicates replace earlier values
// but keep the original position.
func New(cards ...Card) *Header {
	h := &Header{index: make(map[string]int, len(cards))}
	for _, c := range cards {
		h.Set(c)
	}
	return h
}

// Set inserts or replaces a card.
func (h *Header) Set(c Card) {
	if h.index == nil {
		h.index = make(map[string]int)
	}
	key := strings.ToUpper(strings.TrimSpace(c.Name))
	c.Name = key
	if i, ok := h.index[key]; ok {
		h.cards[i] = c
		return
	}
	h.index[key] = len(h.cards)
	h.cards = append(h.cards, c)
}

// Len returns the number of cards.
func (h *Header) Len() int {
	if h == nil {
		return 0
	}
	return len(h.cards)
}

// Cards returns a copy of the cards in order.
func (h *Header) Cards() []Card {
	if h == nil {
		return nil
	}
	out := make([]Card, len(h.cards))
	copy(out, h.cards)
	return out
}

// Get returns the card named key.
func (h *Header) Get(key string) (Card, bool) {
	if h == nil {
		return Card{}, false
	}
	i, ok := h.index[strings.ToUpper(key)]
	if !ok {
		return Card{}, false
	}
	return h.cards[i], true
}

func (h *Header) Has(key string) bool {
	_, ok := h.Get(key)
	return ok
}

// Float returns the card value as a float64. Integer values convert.
func (h *Header) Float(key string) (float64, bool) {
	c, ok := h.Get(key)
	if !ok {
		return 0, false
	}
	switch v := c.Value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Int returns the card value as an int. Floats with a fractional part are rejected.
func (h *Header) Int(key string) (int, bool) {
	c, ok := h.Get(key)
	if !ok {
		return 0, false
	}
	switch v := c.Value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

// String returns the card value formatted as text, or "" if missing.
func (h *Header) String(key string) string {
	c, ok := h.Get(key)
	if !ok {
		return ""
	}
	if s, ok := c.Value.(string); ok {
		return s
	}
	return FormatValue(c.Value)
}

// Clone returns an independent copy.
func (h *Header) Clone() *Header {
	return New(h.Cards()...)
}

// ParseValue converts a raw catalog token into a typed card value.
func ParseValue(raw string) any {
	s := strings.TrimSpace(raw)
	switch s {
	case "T", "True", "true":
		return true
	case "F", "False", "false":
		return false
	}
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return strings.TrimRight(s[1:len(s)-1], " ")
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// FormatValue renders a card value the way ParseValue reads it back.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case bool:
		if x {
			return "T"
		}
		return "F"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		s := strconv.FormatFloat(x, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEIN") {
			s += ".0"
		}
		return s
	case string:
		if s, ok := ParseValue(x).(string); ok && s == x {
			return x
		}
		return "'" + x + "'"
	default:
		return fmt.Sprint(x)
	}
}
