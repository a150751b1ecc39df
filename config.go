package tudat

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

var (
	cfgLoaded = false
	cfg       = _config{}
)

// _config is a "hidden" struct, just use `config`
type _config struct {
	VSOP87    bool
	VSOP87Dir string
	outputDir string
}

// config returns the library configuration, loaded once from the TOML file in
// the directory named by the TUDAT_CONFIG environment variable. Without the
// environment variable everything runs on built-in defaults: no VSOP87 data
// and exports in the working directory.
func config() _config {
	if cfgLoaded {
		return cfg
	}
	confPath := os.Getenv("TUDAT_CONFIG")
	if confPath == "" {
		cfgLoaded = true
		cfg = _config{VSOP87: false, VSOP87Dir: "", outputDir: "./"}
		return cfg
	}
	viper.SetConfigName("conf")
	viper.AddConfigPath(confPath)
	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("%s/conf.toml not found", confPath))
	}

	vsop87Enabled := viper.GetBool("VSOP87.enabled")
	vsop87Dir := viper.GetString("VSOP87.directory")
	outputDir := viper.GetString("general.output_path")
	if outputDir == "" {
		outputDir = "./"
	}

	if vsop87Enabled && vsop87Dir == "" {
		panic("VSOP87 is enabled but VSOP87.directory is empty")
	}
	cfgLoaded = true
	cfg = _config{VSOP87: vsop87Enabled, VSOP87Dir: vsop87Dir, outputDir: outputDir}
	return cfg
}
