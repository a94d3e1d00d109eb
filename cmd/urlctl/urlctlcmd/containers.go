package urlctlcmd

import (
	"context"
	"path"

	"github.com/olekukonko/tablewriter"
	"go.urlrecord.dev/core/address"
	"go.urlrecord.dev/core/formats"
)

type cmdDelete struct {
	Args addressArg `positional-args:"yes"`
}

type cmdTouch struct {
	Args addressArg `positional-args:"yes"`
}

type cmdMkdir struct {
	Args addressArg `positional-args:"yes"`
}

type cmdLs struct {
	Format string     `long:"format" short:"o" choice:"table" choice:"json" choice:"yaml" default:"table" description:"Output format"`
	Args   addressArg `positional-args:"yes"`
}

func init() {
	CommandRegistry.AddCommand("", "delete", "Delete the content of an address", `
Delete the content at an address. It's an error if the address has no content,
or if its scheme doesn't support deletion (scp, http and https).
`, &cmdDelete{})

	CommandRegistry.AddCommand("", "touch", "Create an address with empty content", `
Create empty content at an address, replacing any current content.
`, &cmdTouch{})

	CommandRegistry.AddCommand("", "mkdir", "Create a container address", `
Create a container (directory) at an address, including any missing parents.
Creating a container which already exists is not an error. Only file
addresses have containers; object stores and Etcd use key prefixes, which
exist implicitly.
`, &cmdMkdir{})

	CommandRegistry.AddCommand("", "ls", "List the children of a container address", `
List the immediate children of a container address.

Results can be output in a variety of --format options:
table: Prints as a table of child name, address, and record format.
json:  Prints a JSON array of child addresses.
yaml:  Prints a YAML sequence of child addresses.
`, &cmdLs{})
}

func (cmd *cmdDelete) Execute([]string) error {
	return withAddress(cmd.Args, func(ctx context.Context, e env, addr address.Address) error {
		return e.protocols.Delete(ctx, addr)
	})
}

func (cmd *cmdTouch) Execute([]string) error {
	return withAddress(cmd.Args, func(ctx context.Context, e env, addr address.Address) error {
		return e.protocols.CreateEmpty(ctx, addr)
	})
}

func (cmd *cmdMkdir) Execute([]string) error {
	return withAddress(cmd.Args, func(ctx context.Context, e env, addr address.Address) error {
		return e.protocols.CreateContainer(ctx, addr)
	})
}

func (cmd *cmdLs) Execute([]string) error {
	return withAddress(cmd.Args, func(ctx context.Context, e env, addr address.Address) error {
		var children, err = e.protocols.ListContainer(ctx, addr)
		if err != nil {
			return err
		}
		var sorted = children.Sorted()

		switch cmd.Format {
		case "table":
			return outputTable(e.formats, sorted)
		case "json":
			return outputList(formats.JSON, sorted)
		case "yaml":
			return outputList(formats.YAML, sorted)
		}
		return nil
	})
}

func outputTable(fr *formats.Registry, children []address.Address) error {
	var table = tablewriter.NewWriter(stdout)
	table.Header("Name", "Address", "Format")

	for _, child := range children {
		var format = "-"
		if c, err := fr.Codec(child.Extension()); err == nil {
			format = c.Name()
		}
		if err := table.Append([]string{path.Base(child.Path), child.String(), format}); err != nil {
			return err
		}
	}
	return table.Render()
}

func outputList(codec formats.Codec, children []address.Address) error {
	var out = make([]string, 0, len(children))
	for _, child := range children {
		out = append(out, child.String())
	}

	var s, err = codec.Encode(out)
	if err != nil {
		return err
	}
	_, err = stdout.Write([]byte(s))
	return err
}
