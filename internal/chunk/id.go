package chunk

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
)

// idPrefixRunes bounds how much content feeds the digest.
const idPrefixRunes = 50

// MakeID derives a reproducible chunk identifier:
//
//	<source>-<order>-md5("<docHash>:<order>:<first 50 runes of content>")
//
// Identical (docHash, order, content prefix) always yields the same ID.
// Two chunks that collide overwrite each other in the index; the later write wins.
func MakeID(source, docHash string, order int, content string) string {
	prefix := content
	if r := []rune(content); len(r) > idPrefixRunes {
		prefix = string(r[:idPrefixRunes])
	}
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%d:%s", docHash, order, prefix)))
	return source + "-" + strconv.Itoa(order) + "-" + hex.EncodeToString(sum[:])
}
