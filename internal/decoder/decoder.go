// Package decoder defines the boundary to the external container decoder.
//
// A Decoder owns all container parsing, decryption and audio extraction. It
// determines the decoded format itself, asks the caller where to write through
// a Resolver, and returns the path it wrote. Callers treat it as a black box.
package decoder

import "context"

// Metadata describes the decoded audio as reported by the decoder.
type Metadata struct {
	// Format is the audio file extension without dot (e.g. "mp3", "flac").
	// Empty when the decoder could not tell.
	Format string `json:"format,omitempty"`
}

// Resolver maps an input path and decoded metadata to the output path to write.
type Resolver func(inputPath string, meta Metadata) string

// Decoder converts one container file into decoded audio.
type Decoder interface {
	Convert(ctx context.Context, inputPath string, resolve Resolver) (string, error)
}

// Func adapts an ordinary function to the Decoder interface.
type Func func(ctx context.Context, inputPath string, resolve Resolver) (string, error)

// Convert calls f.
func (f Func) Convert(ctx context.Context, inputPath string, resolve Resolver) (string, error) {
	return f(ctx, inputPath, resolve)
}
