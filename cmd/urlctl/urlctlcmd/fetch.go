package urlctlcmd

import (
	"context"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"go.urlrecord.dev/core/address"
)

type cmdFetch struct {
	Args addressArg `positional-args:"yes"`
}

type cmdPush struct {
	Input string     `long:"input" short:"i" default:"-" description:"Path of content to push. Use '-' for stdin"`
	Args  addressArg `positional-args:"yes"`
}

func init() {
	CommandRegistry.AddCommand("", "fetch", "Write the content of an address to stdout", `
Fetch the content at an address, and write it to stdout.

Fetch a local file:
>    urlctl fetch ./app.toml

Fetch from an HTTPS endpoint, using host configuration of --config:
>    urlctl --config ./urlctl.toml fetch https://config.example.com/v1/app.json
`, &cmdFetch{})

	CommandRegistry.AddCommand("", "push", "Replace the content of an address", `
Push content read from --input (or stdin) to an address, replacing its
current content. Parent directories of local files are created as needed.

>    urlctl push s3://bucket/app.json --input ./app.json
>    echo 'a = 1' | urlctl push etcd://localhost:2379/app.toml
`, &cmdPush{})
}

func (cmd *cmdFetch) Execute([]string) error {
	return withAddress(cmd.Args, func(ctx context.Context, e env, addr address.Address) error {
		var content, _, err = e.protocols.Fetch(ctx, addr)
		if err != nil {
			return err
		}
		_, err = io.WriteString(stdout, content)
		return err
	})
}

func (cmd *cmdPush) Execute([]string) error {
	return withAddress(cmd.Args, func(ctx context.Context, e env, addr address.Address) error {
		var content []byte
		var err error

		if cmd.Input == "-" {
			content, err = io.ReadAll(stdin)
		} else {
			content, err = os.ReadFile(cmd.Input)
		}
		if err != nil {
			return err
		}

		if err = e.protocols.Push(ctx, addr, string(content)); err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"address": addr.String(),
			"size":    humanize.IBytes(uint64(len(content))),
		}).Info("pushed content")

		return nil
	})
}
