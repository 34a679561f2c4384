package cache

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key addresses one cached classification
type Key struct {
	SessionID       string
	InstructionHash string
	DocumentHash    string
}

func (k Key) l1() string {
	return l1Prefix(k.SessionID) + k.InstructionHash + ":" + k.DocumentHash
}

func (k Key) l2() string {
	return l2Prefix(k.DocumentHash) + k.InstructionHash
}

func l1Prefix(sessionID string) string {
	return "l1:" + sessionID + ":"
}

func l2Prefix(documentHash string) string {
	return "l2:" + documentHash + ":"
}

// HashInstruction hashes a normalized instruction; case and whitespace runs are ignored
func HashInstruction(normalized string) string {
	folded := strings.Join(strings.Fields(strings.ToLower(normalized)), " ")
	return strconv.FormatUint(xxhash.Sum64String(folded), 16)
}

// HashDocument hashes the ordered paragraph texts of a snapshot
func HashDocument(paragraphs []string) string {
	d := xxhash.New()
	for _, p := range paragraphs {
		_, _ = d.WriteString(p)
		_, _ = d.Write([]byte{0x1f})
	}
	return strconv.FormatUint(d.Sum64(), 16)
}
