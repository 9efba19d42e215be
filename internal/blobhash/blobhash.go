package blobhash

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
)

// Empty is the blob hash of zero-length content, a well-known git constant.
const Empty = "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391"

// Sum returns the git blob hash of data as 40 lowercase hex characters.
func Sum(data []byte) string {
	h := sha1.New()
	h.Write([]byte("blob "))
	h.Write([]byte(strconv.Itoa(len(data))))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SumReader hashes size bytes from r without buffering the content.
// The blob header encodes the byte length, so size must be known up front.
func SumReader(r io.Reader, size int64) (string, error) {
	h := sha1.New()
	h.Write([]byte("blob "))
	h.Write([]byte(strconv.FormatInt(size, 10)))
	h.Write([]byte{0})
	n, err := io.Copy(h, r)
	if err != nil {
		return "", fmt.Errorf("hashing content: %w", err)
	}
	if n != size {
		return "", fmt.Errorf("hashing content: read %d bytes, expected %d", n, size)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Valid reports whether s has the shape of a blob hash: exactly 40 lowercase
// hexadecimal characters.
func Valid(s string) bool {
	if len(s) != 40 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Prefix returns the first n characters of hash for display, or the whole
// hash when it is shorter than n.
func Prefix(hash string, n int) string {
	if len(hash) <= n {
		return hash
	}
	return hash[:n]
}
