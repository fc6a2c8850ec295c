package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/poruru-code/cxassembly/internal/config"
	"github.com/poruru-code/cxassembly/internal/logger"
	"github.com/poruru-code/cxassembly/pkg/assets"
	"github.com/poruru-code/cxassembly/pkg/cxapi"
	"github.com/poruru-code/cxassembly/pkg/manifeststore"
)

type CLI struct {
	LogLevel  string `name:"log-level" env:"CXCTL_LOG_LEVEL" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" env:"CXCTL_LOG_FORMAT" help:"Log format (text, json)"`
	Config    string `name:"config" env:"CXCTL_CONFIG" help:"Path to config file (default: ~/.cxctl/config.yaml)"`

	Ls       LsCmd       `cmd:"" help:"List the artifacts of a cloud assembly in deployment order"`
	Stack    StackCmd    `cmd:"" help:"Show a stack artifact by physical stack name"`
	Validate ValidateCmd `cmd:"" help:"Load an assembly and report synthesis messages"`
	Synth    SynthCmd    `cmd:"" help:"Write a cloud assembly from a YAML plan"`
	Assets   AssetsCmd   `cmd:"" help:"Asset manifest helpers"`
	Delete   DeleteCmd   `cmd:"" help:"Remove a cloud assembly directory"`
}

type AssemblyFlags struct {
	Assembly         string `name:"assembly" short:"a" required:"" help:"Cloud assembly directory (contains manifest.json)"`
	SkipVersionCheck bool   `name:"skip-version-check" help:"Load manifests outside the supported schema version range"`
	SkipEnumCheck    bool   `name:"skip-enum-check" help:"Load artifacts of unknown type as generic artifacts"`
}

func (f AssemblyFlags) loadOptions() cxapi.LoadOptions {
	return cxapi.LoadOptions{SkipVersionCheck: f.SkipVersionCheck, SkipEnumCheck: f.SkipEnumCheck}
}

type LsCmd struct {
	AssemblyFlags `embed:""`
	Recursive     bool   `name:"recursive" short:"r" help:"Include artifacts of nested assemblies"`
	Output        string `name:"output" short:"o" default:"text" enum:"text,json,yaml" help:"Output format (text, json, yaml)"`
}

type StackCmd struct {
	AssemblyFlags `embed:""`
	Name          string `arg:"" name:"name" help:"Physical stack name"`
	Output        string `name:"output" short:"o" default:"yaml" enum:"json,yaml" help:"Output format (json, yaml)"`
}

type ValidateCmd struct {
	AssemblyFlags `embed:""`
}

type SynthCmd struct {
	Plan   string `name:"plan" required:"" help:"Path to the assembly plan (YAML)"`
	Output string `name:"out" required:"" help:"Output assembly directory"`
}

type AssetsCmd struct {
	Publish AssetsPublishCmd `cmd:"" help:"Upload file assets to their bucket destinations"`
}

type AssetsPublishCmd struct {
	AssemblyFlags `embed:""`
	Account       string `name:"account" required:"" help:"Target account id used for account placeholders"`
	Region        string `name:"region" required:"" help:"Target region used for region placeholders"`
	Partition     string `name:"partition" help:"Target partition used for partition placeholders (default: aws)"`
	Endpoint      string `name:"endpoint" env:"CXCTL_OBJECT_ENDPOINT" help:"S3-compatible endpoint (host:port)"`
	AccessKey     string `name:"access-key" env:"CXCTL_OBJECT_ACCESS_KEY" help:"Object store access key"`
	SecretKey     string `name:"secret-key" env:"CXCTL_OBJECT_SECRET_KEY" help:"Object store secret key"`
	Insecure      bool   `name:"insecure" help:"Connect to the endpoint without TLS"`
}

type DeleteCmd struct {
	Assembly string `name:"assembly" short:"a" required:"" help:"Cloud assembly directory to remove"`
	Force    bool   `name:"force" help:"Remove the directory even when it has no manifest.json"`
}

type kongExitCode int

type commandDeps struct {
	newStore       func() *manifeststore.Store
	newObjectStore func(assets.MinioConfig) (assets.ObjectStore, error)
	loadConfig     func(path string) (config.GlobalConfig, error)
	out            io.Writer
	errOut         io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], defaultDeps()))
}

func defaultDeps() commandDeps {
	return commandDeps{
		newStore:       manifeststore.NewOS,
		newObjectStore: newMinioObjectStore,
		loadConfig:     loadGlobalConfig,
		out:            os.Stdout,
		errOut:         os.Stderr,
	}
}

func run(args []string, deps commandDeps) (exitCode int) {
	out := deps.out
	if out == nil {
		out = os.Stdout
	}
	errOut := deps.errOut
	if errOut == nil {
		errOut = os.Stderr
	}
	cli := CLI{}
	parser, err := kong.New(
		&cli,
		kong.Name("cxctl"),
		kong.Description("Inspect, validate, synthesize and publish cloud assemblies."),
		kong.Writers(out, errOut),
		kong.Exit(func(code int) {
			panic(kongExitCode(code))
		}),
	)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: initialize command parser: %v\n", err)
		return 1
	}
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		code, ok := recovered.(kongExitCode)
		if !ok {
			panic(recovered)
		}
		exitCode = int(code)
	}()
	ctx, err := parser.Parse(args)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		_, _ = fmt.Fprintln(errOut, "Hint: run `cxctl --help`, `cxctl ls --help`, `cxctl validate --help`, or `cxctl assets publish --help`.")
		return 1
	}

	cfg, err := resolveConfig(cli.Config, deps)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: load config: %v\n", err)
		_, _ = fmt.Fprintln(errOut, "Hint: fix or remove the config file, or point `--config` at another one.")
		return 1
	}
	logger.Init(
		config.Resolve(config.DefaultLogLevel, cli.LogLevel, cfg.Log.Level),
		config.Resolve(config.DefaultLogFormat, cli.LogFormat, cfg.Log.Format),
		errOut,
	)

	store := newStore(deps)
	command := ctx.Command()
	switch command {
	case "ls":
		err = runLs(cli.Ls, store, out)
	case "stack <name>":
		err = runStack(cli.Stack, store, out)
	case "validate":
		err = runValidate(cli.Validate, store, out)
	case "synth":
		err = runSynth(cli.Synth, store, out)
	case "assets publish":
		err = runAssetsPublish(cli.Assets.Publish, cfg, store, deps, out, errOut)
	case "delete":
		err = runDelete(cli.Delete, store, out)
	default:
		_, _ = fmt.Fprintf(errOut, "Error: unsupported command: %s\n", command)
		_, _ = fmt.Fprintln(errOut, "Hint: run `cxctl --help`.")
		return 1
	}
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		_, _ = fmt.Fprintf(errOut, "Hint: %s\n", hintForError(command, err))
		return 1
	}
	return 0
}

func newStore(deps commandDeps) *manifeststore.Store {
	if deps.newStore != nil {
		return deps.newStore()
	}
	return manifeststore.NewOS()
}

func resolveConfig(path string, deps commandDeps) (config.GlobalConfig, error) {
	load := deps.loadConfig
	if load == nil {
		load = loadGlobalConfig
	}
	return load(path)
}

func loadGlobalConfig(path string) (config.GlobalConfig, error) {
	if path == "" {
		resolved, err := config.GlobalConfigPath()
		if err != nil {
			return config.GlobalConfig{}, nil
		}
		path = resolved
	}
	return config.LoadOptionalGlobalConfig(path)
}

func newMinioObjectStore(cfg assets.MinioConfig) (assets.ObjectStore, error) {
	return assets.NewMinioStore(cfg)
}

func hintForError(command string, err error) string {
	var notFound manifeststore.ManifestNotFoundError
	var unsupported manifeststore.UnsupportedVersionError
	var unknownType cxapi.UnknownArtifactTypeError
	var ambiguous cxapi.AmbiguousStackNameError
	var stackNotFound cxapi.StackNotFoundError
	var cycle cxapi.DependencyCycleError
	var dangling cxapi.DanglingDependencyError
	var missingAssets assets.MissingManifestError

	switch {
	case errors.As(err, &notFound):
		return "confirm `--assembly` points at a directory containing manifest.json."
	case errors.As(err, &unsupported):
		return "rerun with `--skip-version-check` to load the manifest anyway."
	case errors.As(err, &unknownType):
		return "rerun with `--skip-enum-check` to load unknown artifact types as generic artifacts."
	case errors.As(err, &ambiguous):
		return "run `cxctl ls --assembly <dir>` to see which artifacts share the stack name."
	case errors.As(err, &stackNotFound):
		return "run `cxctl ls --assembly <dir>` to list the stack names in the assembly."
	case errors.As(err, &cycle), errors.As(err, &dangling):
		return "check the `dependencies` of the listed artifacts in manifest.json."
	case errors.As(err, &missingAssets):
		return "re-synthesize the assembly; the asset manifest it references is missing."
	default:
		return fmt.Sprintf("run `cxctl %s --help` for required arguments.", commandName(command))
	}
}

// commandName drops positional placeholders such as "<name>".
func commandName(command string) string {
	var parts []string
	for _, part := range strings.Fields(command) {
		if strings.HasPrefix(part, "<") {
			continue
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}
