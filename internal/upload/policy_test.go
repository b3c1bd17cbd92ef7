package upload

import (
	"bytes"
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyValidate(t *testing.T) {
	p := DefaultPolicy()

	require.NoError(t, p.Validate(MaxFileBytes, "application/pdf", false))
	require.ErrorIs(t, p.Validate(MaxFileBytes+1, "application/pdf", false), ErrFileTooLarge)
	require.NoError(t, p.Validate(1, "IMAGE/PNG", true))
	require.ErrorIs(t, p.Validate(1, "image/png", false), ErrUnsupportedType)
	require.Error(t, p.Validate(-1, "text/plain", false))

	open := Policy{DocumentTypes: []string{}, ImageTypes: []string{}}.Normalized()
	require.NoError(t, open.Validate(1, "application/zip", false))
}

func TestPolicyNormalizedClampsLimits(t *testing.T) {
	p := Policy{MaxFileBytes: 1000, SingleCallThreshold: 5000, ChunkSize: 9000}.Normalized()
	assert.EqualValues(t, 1000, p.SingleCallThreshold)
	assert.EqualValues(t, 1000, p.ChunkSize)
	assert.NotEmpty(t, p.DocumentTypes)

	d := Policy{}.Normalized()
	assert.Equal(t, MaxFileBytes, d.MaxFileBytes)
	assert.Equal(t, SingleCallThreshold, d.SingleCallThreshold)
	assert.Equal(t, ChunkSize, d.ChunkSize)
}

func TestPolicyChunkCount(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 0, p.ChunkCount(0))
	assert.Equal(t, 1, p.ChunkCount(1))
	assert.Equal(t, 1, p.ChunkCount(ChunkSize))
	assert.Equal(t, 2, p.ChunkCount(ChunkSize+1))
	assert.Equal(t, 4, p.ChunkCount(5*mib))
	assert.Equal(t, 7, p.ChunkCount(MaxFileBytes))
}

// Whatever path the coordinator picks, the bytes it hands to the transport
// reassemble into the original file.
func TestPropertyChunkedAndSingleAgree(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("transport receives the file unchanged", prop.ForAll(
		func(size int, chunkSize int, fill byte) bool {
			data := bytes.Repeat([]byte{fill}, size)
			for i := range data {
				data[i] ^= byte(i)
			}

			single := newRecordingTransport()
			chunked := newRecordingTransport()
			wide := Policy{MaxFileBytes: 1 << 20, SingleCallThreshold: 1 << 20, ChunkSize: 1 << 20, DocumentTypes: []string{}}
			narrow := Policy{MaxFileBytes: 1 << 20, SingleCallThreshold: int64(chunkSize), ChunkSize: int64(chunkSize), DocumentTypes: []string{}}

			for _, run := range []struct {
				transport *recordingTransport
				policy    Policy
			}{{single, wide}, {chunked, narrow}} {
				c := NewCoordinator(run.transport, run.policy)
				_, err := c.Upload(context.Background(), Request{
					Target:      programTarget(),
					Filename:    "f.bin",
					ContentType: "application/octet-stream",
					Size:        int64(size),
					Body:        bytes.NewReader(data),
				})
				if err != nil {
					return false
				}
			}
			if size > chunkSize && (chunked.finalizes != 1 || len(chunked.chunks) != (size+chunkSize-1)/chunkSize) {
				return false
			}
			return bytes.Equal(single.assembled.Bytes(), data) && bytes.Equal(chunked.assembled.Bytes(), data)
		},
		gen.IntRange(0, 64*1024),
		gen.IntRange(512, 8192),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}
