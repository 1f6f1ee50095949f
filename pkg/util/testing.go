package util

import (
	"fmt"
	"math/rand"
	"os"
)

// TestZKAddr returns a zookeeper address for unit testing purposes.
func TestZKAddr() string {
	testZkAddr, ok := os.LookupEnv("REBALANCECTL_TEST_ZK_ADDR")
	if !ok {
		return "localhost:2181"
	}

	return testZkAddr
}

// CanTestZK returns whether a zookeeper instance has been made available for tests.
func CanTestZK() bool {
	value, ok := os.LookupEnv("REBALANCECTL_TEST_ZK_ADDR")
	return ok && value != ""
}

var letters = []rune("abcdefghijklmnopqrstuvwxyz")

// RandomString returns a random string with the argument prefix and suffix length.
func RandomString(prefix string, length int) string {
	b := make([]rune, length)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return fmt.Sprintf("%s-%s", prefix, string(b))
}
