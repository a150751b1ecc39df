package tudat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestConfigDefaults(t *testing.T) {
	t.Setenv("TUDAT_CONFIG", "")
	cfgLoaded = false
	c := config()
	if c.VSOP87 || c.VSOP87Dir != "" {
		t.Fatal("VSOP87 enabled without a configuration file")
	}
	if c.outputDir != "./" {
		t.Fatalf("output directory %s", c.outputDir)
	}
	if !cfgLoaded {
		t.Fatal("configuration not marked as loaded")
	}
}

func TestConfigMissingFile(t *testing.T) {
	viper.Reset()
	t.Setenv("TUDAT_CONFIG", t.TempDir())
	cfgLoaded = false
	assertPanic(t, func() { config() })
	cfgLoaded = true
	cfg = _config{outputDir: "./"}
}

func TestConfigFromFile(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	conf := []byte("[general]\noutput_path = \"/tmp/tudat\"\n\n[VSOP87]\nenabled = false\ndirectory = \"\"\n")
	if err := os.WriteFile(filepath.Join(dir, "conf.toml"), conf, 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TUDAT_CONFIG", dir)
	cfgLoaded = false
	c := config()
	if c.outputDir != "/tmp/tudat" {
		t.Fatalf("output directory %s", c.outputDir)
	}
	if c.VSOP87 {
		t.Fatal("VSOP87 should be disabled")
	}
	cfgLoaded = true
	cfg = _config{outputDir: "./"}
}

func TestConfigVSOP87DirRequired(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	conf := []byte("[VSOP87]\nenabled = true\ndirectory = \"\"\n")
	if err := os.WriteFile(filepath.Join(dir, "conf.toml"), conf, 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TUDAT_CONFIG", dir)
	cfgLoaded = false
	assertPanic(t, func() { config() })
	cfgLoaded = true
	cfg = _config{outputDir: "./"}
}
