package wire

import (
	"fmt"
	"unicode/utf16"

	"github.com/pjrmi/pjrmi-go/cmn/cos"
)

// bomBE is the big-endian byte-order mark EncodeUTF16BOM always emits
// (matching the rest of the wire format's multi-byte-integer convention);
// DecodeUTF16BOM also accepts its little-endian form.
const (
	bomBE = 0xFEFF
)

// EncodeUTF16BOM encodes s as big-endian UTF-16 prefixed with a BOM, the
// form used for every string/char/char[] value on the wire (handshake
// command, to-string results, string field values).
func EncodeUTF16BOM(s string) []byte {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, 2+2*len(units))
	buf[0], buf[1] = byte(bomBE>>8), byte(bomBE)
	for i, u := range units {
		buf[2+2*i] = byte(u >> 8)
		buf[2+2*i+1] = byte(u)
	}
	return buf
}

// DecodeUTF16BOM decodes a BOM-prefixed UTF-16 byte slice, honoring either
// byte order the BOM declares (a well-behaved peer always writes BE, but a
// foreign client library may not).
func DecodeUTF16BOM(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	if len(b) < 2 {
		return "", &cos.ErrMalformedRequest{Reason: "UTF-16 payload shorter than a BOM"}
	}
	if len(b)%2 != 0 {
		return "", &cos.ErrMalformedRequest{Reason: fmt.Sprintf("UTF-16 payload has odd length %d", len(b))}
	}

	bom := uint16(b[0])<<8 | uint16(b[1])
	var be bool
	switch bom {
	case 0xFEFF:
		be = true
	case 0xFFFE:
		be = false
	default:
		return "", &cos.ErrMalformedRequest{Reason: fmt.Sprintf("unrecognised UTF-16 BOM 0x%04x", bom)}
	}

	n := (len(b) - 2) / 2
	units := make([]uint16, n)
	for i := 0; i < n; i++ {
		hi, lo := b[2+2*i], b[2+2*i+1]
		if be {
			units[i] = uint16(hi)<<8 | uint16(lo)
		} else {
			units[i] = uint16(lo)<<8 | uint16(hi)
		}
	}
	return string(utf16.Decode(units)), nil
}
