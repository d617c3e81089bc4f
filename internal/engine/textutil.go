package engine

import (
	"crypto/rand"
	"math/big"

	"github.com/anatolykoptev/go-kit/strutil"
)

// maxPreview caps body excerpts written to logs and errors.
const maxPreview = 200

func preview(s string) string {
	return strutil.TruncateWith(s, maxPreview, "...")
}

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// randomToken returns n characters drawn from [A-Za-z0-9].
func randomToken(n int) string {
	return randomFrom(tokenAlphabet, n)
}

// randomDigits returns n decimal digits with a non-zero first digit.
func randomDigits(n int) string {
	if n <= 0 {
		return ""
	}
	return randomFrom("123456789", 1) + randomFrom("0123456789", n-1)
}

func randomFrom(alphabet string, n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms.
			panic(err)
		}
		out[i] = alphabet[v.Int64()]
	}
	return string(out)
}
