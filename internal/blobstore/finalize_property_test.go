package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Finalize succeeds exactly when the appended byte count equals the declared
// size, and the finalized bytes are the chunks concatenated in order.
func TestPropertyFinalizeMatchesDeclaredSize(t *testing.T) {
	root, err := os.MkdirTemp("", "blobprop-*")
	if err != nil {
		t.Fatalf("temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(root) })
	st, err := NewLocalStore(root)
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60
	properties := gopter.NewProperties(parameters)

	seq := 0
	properties.Property("finalize ok iff accumulated == declared", prop.ForAll(
		func(chunks [][]byte, delta int64) bool {
			seq++
			id := fmt.Sprintf("prop-%d", seq)
			ctx := context.Background()

			var want []byte
			for _, chunk := range chunks {
				if _, err := st.Append(ctx, id, chunk); err != nil {
					return false
				}
				want = append(want, chunk...)
			}
			if len(chunks) == 0 {
				if _, err := st.Append(ctx, id, nil); err != nil {
					return false
				}
			}

			declared := int64(len(want)) + delta
			blob, err := st.Finalize(ctx, id, declared)
			if delta != 0 {
				return errors.Is(err, ErrSizeMismatch)
			}
			if err != nil || blob.SizeBytes != declared {
				return false
			}

			rc, _, err := st.Open(ctx, id)
			if err != nil {
				return false
			}
			defer rc.Close()
			got, err := io.ReadAll(rc)
			if err != nil {
				return false
			}
			return string(got) == string(want)
		},
		gen.SliceOf(gen.SliceOf(gen.UInt8())),
		gen.OneGenOf(gen.Const(int64(0)), gen.Int64Range(-3, 3)),
	))

	properties.TestingRun(t)
}
