package batch

import "fmt"

// Cursor reads a flat token slice positionally.
type Cursor struct {
	tokens []any
	pos    int
}

// NewCursor returns a cursor at the start of tokens.
func NewCursor(tokens []any) *Cursor {
	return &Cursor{tokens: tokens}
}

// Next returns exactly n tokens, or ErrDesync if fewer remain.
func (c *Cursor) Next(n int) ([]any, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative read %d", ErrDesync, n)
	}
	if c.pos+n > len(c.tokens) {
		return nil, fmt.Errorf("%w: want %d tokens at position %d, only %d remain",
			ErrDesync, n, c.pos, len(c.tokens)-c.pos)
	}
	out := c.tokens[c.pos : c.pos+n]
	c.pos += n
	return out, nil
}

// Pos returns the number of tokens consumed.
func (c *Cursor) Pos() int { return c.pos }

// Remaining returns the number of unconsumed tokens.
func (c *Cursor) Remaining() int { return len(c.tokens) - c.pos }

// Close fails with ErrDesync if any tokens were left unread.
func (c *Cursor) Close() error {
	if rem := c.Remaining(); rem > 0 {
		return fmt.Errorf("%w: %d unread tokens after position %d", ErrDesync, rem, c.pos)
	}
	return nil
}
