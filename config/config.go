// Package config holds the run options and the optional YAML file that
// supplies defaults for them.
package config

import (
	"errors"
	"fmt"
	"io"

	"imagededup/imageprocessor"
	"imagededup/logging"
	"imagededup/utils"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Options are the resolved settings of one run
type Options struct {
	Threshold       int
	Interactive     bool
	AutoKeepLarger  bool
	AutoKeepSmaller bool
	TrashFolder     string
	LogFile         string
	Report          string
	Hasher          string
	HashSize        int
	Workers         int
	Viewer          string
	DryRun          bool
	Debug           bool
}

// Default returns the options used when neither flags nor a file set them
func Default() Options {
	return Options{
		Threshold: utils.DefaultThreshold,
		LogFile:   logging.DefaultLogFile,
		Hasher:    imageprocessor.DefaultHasher,
		HashSize:  imageprocessor.DefaultHashSize,
	}
}

// KeepLarger reports the automatic survivor rule
func (o Options) KeepLarger() bool {
	return utils.ResolveKeepLarger(o.AutoKeepLarger, o.AutoKeepSmaller)
}

// Validate checks values that flags and files can both get wrong
func (o Options) Validate() error {
	if err := utils.ValidateThreshold(o.Threshold); err != nil {
		return err
	}
	if o.HashSize != 8 && o.HashSize != 16 {
		return fmt.Errorf("hash_size must be 8 or 16, got %d", o.HashSize)
	}
	if o.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", o.Workers)
	}
	return nil
}

// File is the YAML config file. Unset keys leave the option untouched.
type File struct {
	Threshold       *int    `yaml:"threshold"`
	Interactive     *bool   `yaml:"interactive"`
	AutoKeepLarger  *bool   `yaml:"auto_keep_larger"`
	AutoKeepSmaller *bool   `yaml:"auto_keep_smaller"`
	TrashFolder     *string `yaml:"trash_folder"`
	LogFile         *string `yaml:"log_file"`
	Report          *string `yaml:"report"`
	Hasher          *string `yaml:"hasher"`
	HashSize        *int    `yaml:"hash_size"`
	Workers         *int    `yaml:"workers"`
	Viewer          *string `yaml:"viewer"`
	DryRun          *bool   `yaml:"dry_run"`
	Debug           *bool   `yaml:"debug"`
}

// Load reads a config file. Unknown keys are an error.
func Load(fs afero.Fs, path string) (*File, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	defer f.Close()

	var file File
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing YAML %s: %w", path, err)
	}
	return &file, nil
}

// ApplyTo copies every key set in the file onto options
func (f *File) ApplyTo(options *Options) {
	setInt(&options.Threshold, f.Threshold)
	setBool(&options.Interactive, f.Interactive)
	setBool(&options.AutoKeepLarger, f.AutoKeepLarger)
	setBool(&options.AutoKeepSmaller, f.AutoKeepSmaller)
	setString(&options.TrashFolder, f.TrashFolder)
	setString(&options.LogFile, f.LogFile)
	setString(&options.Report, f.Report)
	setString(&options.Hasher, f.Hasher)
	setInt(&options.HashSize, f.HashSize)
	setInt(&options.Workers, f.Workers)
	setString(&options.Viewer, f.Viewer)
	setBool(&options.DryRun, f.DryRun)
	setBool(&options.Debug, f.Debug)
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
