// Package id generates opaque identifiers for records that are not keyed by
// a natural value such as an email or ISBN.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// alphabet leaves out look-alike characters (0/O, 1/l/I) so receipt numbers
// can be read out over a counter.
const alphabet = "23456789abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"

// Size is the length of the random part of every ID.
const Size = 16

// Prefixes for each kind of ID.
const (
	PrefixPayment = "pay"
)

// Generate creates an ID of the form prefix_xxxxxxxxxxxxxxxx.
// It fails only when the system entropy source does.
func Generate(prefix string) (string, error) {
	raw, err := gonanoid.Generate(alphabet, Size)
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "_" + raw, nil
}

// NewPaymentID returns a payment receipt number.
func NewPaymentID() (string, error) {
	return Generate(PrefixPayment)
}

// MustGenerate is like Generate but panics on failure. Use it only where a
// failure should crash the program, such as seeding.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}
