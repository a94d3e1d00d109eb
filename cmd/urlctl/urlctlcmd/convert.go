package urlctlcmd

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"go.urlrecord.dev/core/formats"
	"go.urlrecord.dev/core/records"
)

type cmdConvert struct {
	Args struct {
		Source string `positional-arg-name:"SOURCE" required:"true" description:"Path or URL of the record to convert"`
		Target string `positional-arg-name:"TARGET" required:"true" description:"Path or URL to store the converted record"`
	} `positional-args:"yes"`
	Strict bool `long:"strict" description:"Decode SOURCE in the format of its extension, rather than probing each format"`
}

func init() {
	CommandRegistry.AddCommand("", "convert", "Copy a record between addresses and formats", `
Load a record from SOURCE and store it to TARGET, in the format of TARGET's
file extension (toml, json, yaml or yml).

By default the format of SOURCE is discovered by trying each of toml, json,
and yaml in turn. Use --strict to instead require the format of SOURCE's
extension.

>    urlctl convert ./app.toml s3://bucket/app.json
>    urlctl convert https://example.com/app.json ./app.yaml
`, &cmdConvert{})
}

func (cmd *cmdConvert) Execute([]string) error {
	var ctx = context.Background()

	var e, err = startup(ctx)
	if err != nil {
		return err
	}
	src, err := parseAddress(cmd.Args.Source)
	if err != nil {
		return err
	}
	dst, err := parseAddress(cmd.Args.Target)
	if err != nil {
		return err
	}

	var doc formats.Document
	if cmd.Strict {
		doc, err = records.LoadAs[formats.Document](ctx, src, e.protocols, e.formats)
	} else {
		doc, err = records.Load[formats.Document](ctx, src, e.protocols, e.formats)
	}
	if err != nil {
		return err
	}
	if err = records.Store(ctx, dst, doc, e.protocols, e.formats); err != nil {
		return err
	}

	// Report the stored size, as encoded.
	var size int
	if s, err := formats.EncodeAs(e.formats, doc, dst.Extension()); err == nil {
		size = len(s)
	}
	_, err = fmt.Fprintf(stdout, "converted %s to %s (%s)\n", src, dst, humanize.IBytes(uint64(size)))
	return err
}
