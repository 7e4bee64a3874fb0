package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// BootstrapFile is the name of the optional, unversioned local file
// `init` consults for flag defaults. It is never read by any core
// component (queue, engine, Store) — only by the CLI's init
// flag-resolution step, per SPEC_FULL.md §4.D.2.
const BootstrapFile = ".jjq.toml"

// Bootstrap holds the defaults an operator can park in .jjq.toml so
// `jjq init` doesn't require repeating --trunk/--check/--strategy on
// every fresh clone.
type Bootstrap struct {
	Init struct {
		Trunk    string `toml:"trunk"`
		Check    string `toml:"check"`
		Strategy string `toml:"strategy"`
	} `toml:"init"`
}

// LoadBootstrap reads repoRoot/.jjq.toml if present. A missing file is
// not an error; it returns a zero-value Bootstrap.
func LoadBootstrap(repoRoot string) (Bootstrap, error) {
	var b Bootstrap
	path := filepath.Join(repoRoot, BootstrapFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return b, nil
	}
	_, err := toml.DecodeFile(path, &b)
	return b, err
}
