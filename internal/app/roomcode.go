package app

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
)

var roomCodePrefixes = []string{
	"Turing", "VonNeumann", "Shannon", "Dijkstra", "Knuth", "Ritchie",
	"Torvalds", "Thompson", "Hopper", "Lovelace", "Babbage", "Berners",
	"Backus", "Wilkes", "Zuse", "Atanasoff", "Woz", "Moore", "Gates", "Jobs",
}

var roomCodeSuffixes = []string{
	"Core", "Bit", "Byte", "Gate", "Flip", "Flop", "ALU", "MUX", "Cache",
	"RAM", "ROM", "Bus", "Clock", "Pulse", "Shift", "Reg", "Stack", "Heap",
	"NAND", "NOR", "XOR", "Latch", "Zero", "One", "Quantum", "Silicon",
	"Transistor",
}

const maxRoomCodeAttempts = 50

// generateRoomCode returns an unused uppercase room code. Uniqueness is
// checked against the round store; generation is bounded so a saturated
// code space fails loudly instead of spinning.
func generateRoomCode(ctx context.Context, exists func(ctx context.Context, code string) (bool, error)) (string, error) {
	for attempt := 0; attempt < maxRoomCodeAttempts; attempt++ {
		prefix := roomCodePrefixes[rand.Intn(len(roomCodePrefixes))]
		suffix := roomCodeSuffixes[rand.Intn(len(roomCodeSuffixes))]
		code := strings.ToUpper(prefix + suffix)

		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique room code after %d attempts", maxRoomCodeAttempts)
}
