// Package urlctlcmd implements the commands of urlctl, a tool for moving
// records between local files, remote hosts, HTTP endpoints, object stores,
// and Etcd.
package urlctlcmd

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.urlrecord.dev/core/address"
	"go.urlrecord.dev/core/formats"
	mbp "go.urlrecord.dev/core/mainboilerplate"
	"go.urlrecord.dev/core/protocols"
	"go.urlrecord.dev/core/protocols/builtin"
	"go.urlrecord.dev/core/records"
)

const iniFilename = "urlctl.ini"

var (
	baseCfg = new(struct {
		Config string        `long:"config" env:"URLCTL_CONFIG" description:"Path or URL of a protocols configuration document (toml, json or yaml)"`
		Log    mbp.LogConfig `group:"Logging" namespace:"log" env-namespace:"LOG"`
	})

	// CommandRegistry of urlctl sub-commands, populated by init functions.
	CommandRegistry = mbp.NewCommandRegistry()

	// Command output is written to stdout.
	stdout io.Writer = os.Stdout
	stdin  io.Reader = os.Stdin
)

// Execute parses flags and configuration, and runs the selected command.
func Execute() {
	var parser = flags.NewParser(baseCfg, flags.Default)

	mbp.AddPrintConfigCmd(parser, iniFilename)
	parser.LongDescription = `urlctl stores, loads, and converts records at addresses.

	Addresses are URLs such as file:///etc/app.toml, scp://host/path/app.json,
	https://example.com/app.yaml, s3://bucket/app.toml, gs://bucket/app.toml,
	azure://container/app.json, or etcd://host:2379/app.json. A bare path is
	taken to be a local file.

	See --help pages of each sub-command for documentation and usage examples.
	Optionally configure urlctl with a '` + iniFilename + `' file in the current working directory,
	or with '~/.config/urlrecord/` + iniFilename + `'. Use the 'print-config' sub-command to inspect
	the tool's current configuration.
	`
	mbp.Must(CommandRegistry.AddCommands("", parser.Command, true), "could not add subcommand")
	mbp.MustParseConfig(parser, iniFilename)
}

// env holds the registries used by commands.
type env struct {
	protocols *protocols.Registry
	formats   *formats.Registry
}

// startup initializes logging, and builds the env of commands.
func startup(ctx context.Context) (env, error) {
	mbp.InitLog(baseCfg.Log)

	var e = env{formats: formats.DefaultRegistry()}
	if baseCfg.Config == "" {
		e.protocols = builtin.DefaultRegistry()
		return e, nil
	}

	var addr, err = parseAddress(baseCfg.Config)
	if err != nil {
		return env{}, errors.WithMessage(err, "--config")
	}
	// The configuration document is itself fetched using the default registry.
	cfg, err := records.Load[builtin.Config](ctx, addr, builtin.DefaultRegistry(), e.formats)
	if err != nil {
		return env{}, errors.WithMessagef(err, "loading --config %s", addr)
	}
	if e.protocols, err = builtin.NewRegistry(cfg); err != nil {
		return env{}, errors.WithMessagef(err, "validating --config %s", addr)
	}

	log.WithFields(log.Fields{
		"config":    addr.String(),
		"httpHosts": len(cfg.HTTP.Hosts),
	}).Debug("loaded protocols configuration")

	return e, nil
}

// withAddress runs |fn| with the env and the parsed Address of |arg|.
func withAddress(arg addressArg, fn func(context.Context, env, address.Address) error) error {
	var ctx = context.Background()

	var e, err = startup(ctx)
	if err != nil {
		return err
	}
	addr, err := parseAddress(arg.Address)
	if err != nil {
		return err
	}
	return fn(ctx, e, addr)
}

// parseAddress parses |arg| as an Address URL, or as a local path if it has
// no scheme.
func parseAddress(arg string) (address.Address, error) {
	if strings.Contains(arg, "://") {
		return address.Parse(arg)
	}
	return address.FromPath(arg)
}

// addressArg is the positional argument of commands operating on one Address.
type addressArg struct {
	Address string `positional-arg-name:"ADDRESS" required:"true" description:"Path or URL to operate on"`
}
