package executor

import (
	"math/rand"
	"strings"
)

const defaultRandomLength = 8

var (
	firstNames = []string{"Alice", "Bruno", "Chloe", "Diego", "Emma", "Farid", "Grace", "Hugo", "Ines", "Jonas", "Keiko", "Liam", "Maya", "Noah", "Olga", "Priya"}
	lastNames  = []string{"Anders", "Bianchi", "Costa", "Dubois", "Evans", "Fischer", "Garcia", "Hansen", "Ito", "Jensen", "Kowalski", "Lopez", "Moreau", "Novak", "Okafor", "Petrov"}
	domains    = []string{"example.com", "mail.test", "inbox.dev"}
)

const (
	letters = "abcdefghijklmnopqrstuvwxyz"
	digits  = "0123456789"
)

// randomText generates input for inputRandom. Unknown types yield TEXT.
func randomText(dataType string, length int) string {
	if length <= 0 {
		length = defaultRandomLength
	}
	switch strings.ToUpper(dataType) {
	case "NUMBER":
		return randomFrom(digits, length)
	case "EMAIL":
		return randomFrom(letters, length) + "@" + domains[rand.Intn(len(domains))]
	case "PERSON_NAME":
		return firstNames[rand.Intn(len(firstNames))] + " " + lastNames[rand.Intn(len(lastNames))]
	default:
		return randomFrom(letters, length)
	}
}

func randomFrom(alphabet string, n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(alphabet[rand.Intn(len(alphabet))])
	}
	return b.String()
}
