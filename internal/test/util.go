package test

import (
	"fmt"
	"math/rand"
	"sync/atomic"
)

var globalSeed atomic.Int64

const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

// RandomPlaceKeys returns a slice of n random unique place keys shaped like the
// identifiers the imagery service issues.
func RandomPlaceKeys(n int) []string {
	rng := rand.New(rand.NewSource(globalSeed.Add(1)))
	keys := make([]string, n)
	keySet := make(map[string]struct{})
	for i := 0; i < n; i++ {
		b := make([]byte, 23)
		for j := range b {
			b[j] = keyAlphabet[rng.Intn(len(keyAlphabet))]
		}
		key := "ChIJ" + string(b)
		if _, ok := keySet[key]; ok {
			i--
			continue
		}
		keySet[key] = struct{}{}
		keys[i] = key
	}
	return keys
}

// RandomPhotoNames returns a slice of n random photo resource names belonging
// to the place identified by placeKey.
func RandomPhotoNames(placeKey string, n int) []string {
	rng := rand.New(rand.NewSource(globalSeed.Add(1)))
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = fmt.Sprintf("places/%s/photos/%x", placeKey, rng.Uint64())
	}
	return names
}
