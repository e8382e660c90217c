// Package compiler turns edit requests into ordered engine invocation
// plans. Compilation is pure: no engine, no filesystem. All file
// references in a plan are names inside the engine session workspace;
// staging real files under those names is the executor's job.
package compiler

// Encoding defaults shared by every re-encoding invocation.
const (
	videoCodec  = "libx264"
	videoPreset = "veryfast"
	videoCRF    = "18"
	audioCodec  = "aac"
	audioRate   = "192k"

	// Output canvas for scene remixes (vertical ad format).
	canvasW   = 1080
	canvasH   = 1920
	canvasFPS = 30

	// OutputName is the workspace name every plan renders to.
	OutputName = "output.mp4"
)

// Invocation is one engine run: argv for the engine binary plus the
// workspace file it produces. Stage labels the run for progress reporting.
type Invocation struct {
	Stage  string
	Args   []string
	Output string
}

// Write is a file the executor must place into the workspace before the
// plan runs.
type Write struct {
	Name string
	Data []byte
}

// Plan is an ordered invocation sequence producing Output. Scratch lists
// every intermediate workspace name so the executor can clean up on any
// exit path.
type Plan struct {
	Invocations []Invocation
	Writes      []Write
	Output      string
	Scratch     []string
}

func videoEncodeArgs() []string {
	return []string{"-c:v", videoCodec, "-preset", videoPreset, "-crf", videoCRF}
}

func audioEncodeArgs() []string {
	return []string{"-c:a", audioCodec, "-b:a", audioRate}
}
