// Package converters wraps the external ffmpeg tooling used to read media the
// Go decoders cannot: video frames and damaged still images.
package converters

import "fmt"

// FileInfo contains metadata about a media file
type FileInfo struct {
	Width     int     // Width in pixels of the first video stream
	Height    int     // Height in pixels of the first video stream
	Frames    int     // Number of video frames (packets) in the first video stream
	FrameRate float64 // Average frames per second of the first video stream
	Duration  float64 // Duration in seconds
	Size      int64   // File size in bytes
}

// ToolError is returned when an external tool exits unsuccessfully. The
// tool's diagnostic output is kept in Stderr and never becomes part of the
// error message.
type ToolError struct {
	Tool   string
	Err    error
	Stderr string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }
