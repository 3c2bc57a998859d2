package image

import (
	"os"

	"github.com/virt-do/kaps/config"
)

func testConfig(dir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.RootDir = dir
	cfg.ContainersDir = dir + "/containers"
	return cfg
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o600)
}
