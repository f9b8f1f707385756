package main

import (
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wippyai/protogen"
	"github.com/wippyai/protogen/errors"
	"github.com/wippyai/protogen/gen"
)

// config holds every setting a command can take from the config file or
// its flags.
type config struct {
	Compile   protogen.Options
	Prefix    string
	Package   string
	Server    bool
	Client    bool
	Artifacts gen.Artifacts
	Private   bool
}

func defaultConfig() config {
	return config{
		Compile: protogen.DefaultOptions(),
		Package: gen.DefaultPackage,
	}
}

// protogen.toml key mapping.
type fileConfig struct {
	PointerWidth      int             `toml:"pointer_width"`
	ByteOrder         string          `toml:"byte_order"`
	ExtraAlign        uint64          `toml:"extra_align"`
	MaxAlloc          uint64          `toml:"max_alloc"`
	Prefix            string          `toml:"prefix"`
	Package           string          `toml:"package"`
	AllowDuplicateIDs bool            `toml:"allow_duplicate_ids"`
	Server            bool            `toml:"server"`
	Client            bool            `toml:"client"`
	Artifacts         artifactsConfig `toml:"artifacts"`
}

type artifactsConfig struct {
	Enums         bool     `toml:"enums"`
	Demarshallers bool     `toml:"demarshallers"`
	Marshallers   bool     `toml:"marshallers"`
	Private       bool     `toml:"private"`
	Structs       []string `toml:"structs"`
}

// loadConfig overlays the keys set in path onto the defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "load config "+path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config{}, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("%s: unknown key %s", path, undecoded[0]).Build()
	}

	if meta.IsDefined("pointer_width") {
		cfg.Compile.PointerWidth = raw.PointerWidth
	}
	if meta.IsDefined("byte_order") {
		big, err := parseByteOrder(raw.ByteOrder)
		if err != nil {
			return config{}, err
		}
		cfg.Compile.BigEndian = big
	}
	if meta.IsDefined("extra_align") {
		cfg.Compile.ExtraAlign = raw.ExtraAlign
	}
	if meta.IsDefined("max_alloc") {
		cfg.Compile.MaxAlloc = raw.MaxAlloc
	}
	if meta.IsDefined("allow_duplicate_ids") {
		cfg.Compile.AllowDuplicateIDs = raw.AllowDuplicateIDs
	}
	if meta.IsDefined("prefix") {
		cfg.Prefix = strings.TrimSpace(raw.Prefix)
	}
	if meta.IsDefined("package") {
		cfg.Package = strings.TrimSpace(raw.Package)
	}
	if meta.IsDefined("server") {
		cfg.Server = raw.Server
	}
	if meta.IsDefined("client") {
		cfg.Client = raw.Client
	}
	if meta.IsDefined("artifacts", "enums") {
		cfg.Artifacts.Enums = raw.Artifacts.Enums
	}
	if meta.IsDefined("artifacts", "demarshallers") {
		cfg.Artifacts.Demarshallers = raw.Artifacts.Demarshallers
	}
	if meta.IsDefined("artifacts", "marshallers") {
		cfg.Artifacts.Marshallers = raw.Artifacts.Marshallers
	}
	if meta.IsDefined("artifacts", "private") {
		cfg.Private = raw.Artifacts.Private
	}
	if meta.IsDefined("artifacts", "structs") {
		cfg.Artifacts.Structs = raw.Artifacts.Structs
	}
	return cfg, nil
}

func parseByteOrder(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "little", "le":
		return false, nil
	case "big", "be":
		return true, nil
	}
	return false, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Detail("byte order %q (expected little or big)", s).Build()
}
