// Package codec implements the container's payload obfuscation: a
// fixed, bijective byte-permutation applied to file payloads on write
// and reversed on read. It is obfuscation, not encryption — no keys,
// no integrity, stateless across blocks.
package codec

// Codec holds the encode/decode permutation tables, built once at
// construction.
type Codec struct {
	enc [256]byte
	dec [256]byte
}

// New builds the canonical table: enc[i] = (i + 73) mod 256.
func New() *Codec {
	c := &Codec{}
	for i := 0; i < 256; i++ {
		c.enc[i] = byte((i + 73) % 256)
	}
	for i := 0; i < 256; i++ {
		c.dec[c.enc[i]] = byte(i)
	}
	return c
}

// Encode permutes b in place.
func (c *Codec) Encode(b []byte) {
	for i, v := range b {
		b[i] = c.enc[v]
	}
}

// Decode reverses Encode in place. decode(encode(x)) == x for every x.
func (c *Codec) Decode(b []byte) {
	for i, v := range b {
		b[i] = c.dec[v]
	}
}
