package usecase

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/forPelevin/adcut/internal/ports"
	"github.com/forPelevin/adcut/internal/types"
)

// stager copies host files into the session workspace and remembers every
// workspace name it has touched so one deferred cleanup can sweep them all,
// on every exit path.
type stager struct {
	s     ports.EngineSession
	bySrc map[string]string
	names []string
}

func newStager(s ports.EngineSession) *stager {
	return &stager{s: s, bySrc: map[string]string{}}
}

// stage copies a host file in under a generated name. The same host path
// stages once and reuses its name.
func (st *stager) stage(hostPath string) (string, error) {
	if hostPath == "" {
		return "", errors.New("empty source path")
	}
	if name, ok := st.bySrc[hostPath]; ok {
		return name, nil
	}
	f, err := os.Open(hostPath)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer f.Close()
	name := fmt.Sprintf("src-%03d%s", len(st.bySrc), filepath.Ext(hostPath))
	if err := st.s.WriteInput(name, f); err != nil {
		return "", err
	}
	st.bySrc[hostPath] = name
	st.track(name)
	return name, nil
}

func (st *stager) stageBytes(name string, data []byte) error {
	if err := st.s.WriteFile(name, data); err != nil {
		return err
	}
	st.track(name)
	return nil
}

// stageImages rewrites image overlay references in place to workspace
// names, inline bytes winning over paths.
func (st *stager) stageImages(ops []types.Operation) error {
	n := 0
	for i := range ops {
		if ops[i].Kind != types.OpImageOverlay {
			continue
		}
		switch {
		case len(ops[i].ImageData) > 0:
			name := fmt.Sprintf("img-%03d.png", n)
			if err := st.stageBytes(name, ops[i].ImageData); err != nil {
				return err
			}
			ops[i].Image = name
			ops[i].ImageData = nil
		case ops[i].Image != "":
			name, err := st.stage(ops[i].Image)
			if err != nil {
				return err
			}
			ops[i].Image = name
		}
		n++
	}
	return nil
}

func (st *stager) track(names ...string) {
	st.names = append(st.names, names...)
}

// cleanup removes every tracked workspace file. Errors are swallowed: the
// workspace is torn down wholesale when its session goes away.
func (st *stager) cleanup() {
	for _, n := range st.names {
		_ = st.s.Remove(n)
	}
}
