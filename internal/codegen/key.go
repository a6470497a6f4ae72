package codegen

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/specialistvlad/fragc/internal/include"
)

// keyVersion changes whenever the generated layout changes, so units cached
// by an older generator are never reused.
const keyVersion = "fragc/codegen/v1"

// Key derives the cache key of a compilation: the fragment id and text, the
// ordered content of every include, the slot bindings and the options. The
// id is part of the key because it appears in the generated markers.
func Key(fragmentID, source string, includes []*include.File, inputs, outputs []Slot, opts Options) string {
	h := sha256.New()
	writeField(h, keyVersion)
	writeField(h, fragmentID)
	writeField(h, source)
	for _, inc := range includes {
		writeField(h, inc.LogicalPath)
		writeField(h, inc.Hash)
	}
	writeField(h, "inputs")
	writeSlots(h, inputs)
	writeField(h, "outputs")
	writeSlots(h, outputs)
	writeField(h, fmt.Sprintf("line_directives=%t", opts.LineDirectives))
	return hex.EncodeToString(h.Sum(nil))
}

func writeSlots(h hash.Hash, slots []Slot) {
	for _, s := range slots {
		writeField(h, s.Var)
		writeField(h, s.Name)
		writeField(h, s.Type)
	}
}

// writeField length-prefixes each field so adjacent fields cannot collide.
func writeField(w io.Writer, s string) {
	fmt.Fprintf(w, "%d:%s;", len(s), s)
}
