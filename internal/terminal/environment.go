package terminal

import (
	"strings"

	"github.com/GriffinCanCode/x11host/internal/shared/paths"
)

// Environment is the derived environment of a session
type Environment struct {
	HomeDir string
	BinPath string
	Env     []string
}

// BuildEnvironment derives the session environment for a home directory.
// The private bin directory is searched before the host's system directories.
func BuildEnvironment(home string, layout paths.Layout, cfg Config) Environment {
	bin := layout.BinDir()

	search := []string{bin}
	if cfg.SystemPath != "" {
		search = append(search, cfg.SystemPath)
	}

	return Environment{
		HomeDir: home,
		BinPath: bin,
		Env: []string{
			"TERM=" + cfg.Term,
			"LANG=" + cfg.Lang,
			"HOME=" + home,
			"PATH=" + strings.Join(search, ":"),
		},
	}
}
