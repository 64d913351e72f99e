package cos

import (
	"crypto/rand"
	mrand "math/rand"
)

// LetterRunes is the alphabet used by GenBEID and CryptoRandS.
const LetterRunes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	LenRunes = len(LetterRunes)

	letterIdxBits = 6                    // 6 bits cover 0..63, >= LenRunes
	letterIdxMask = 1<<letterIdxBits - 1 // all 1-bits, as many as letterIdxBits
)

// MLCG32 is the multiplier of a 32-bit multiplicative linear congruential
// generator (Lehmer, mod 2^31-1), used as the xxhash seed when a connection's
// handle-table salt is derived from its connection ID (see conn.Server).
const MLCG32 = 1597334677

// CryptoRandS returns a random alphanumeric string of length n, seeded from
// crypto/rand. Used where an identifier must not be guessable (daemon/
// connection IDs), as opposed to GenBEID's fast, process-local generation.
func CryptoRandS(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the OS entropy source is broken; fall
		// back rather than panic on an identifier helper.
		for i := range b {
			b[i] = LetterRunes[mrand.Intn(LenRunes)]
		}
		return UnsafeS(b)
	}
	for i := range b {
		b[i] = LetterRunes[int(b[i])%LenRunes]
	}
	return UnsafeS(b)
}
