package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ruteri/host-directory/cmd/flags"
	"github.com/ruteri/host-directory/interfaces"
	"github.com/ruteri/host-directory/pipeline"
	"github.com/ruteri/host-directory/schema"
	"github.com/urfave/cli/v2"
)

var flagForce = &cli.BoolFlag{
	Name:  "force",
	Usage: "skip the DNS check of the host name",
}
var flagAll = &cli.BoolFlag{
	Name:  "all",
	Usage: "return every stored attribute",
}
var flagSet = &cli.StringSliceFlag{
	Name:    "set",
	Aliases: []string{"s"},
	Usage:   "field value as name=value, repeat for multiple values; name= clears the field",
}
var flagAttrs = &cli.StringSliceFlag{
	Name:  "attrs",
	Usage: "fields to return, comma separated or repeated",
}
var flagFilter = &cli.StringFlag{
	Name:  "filter",
	Usage: "additional LDAP filter in public field names, e.g. (locality=Berlin)",
}

func main() {
	app := &cli.App{
		Name:                      "hostctl",
		Usage:                     "Manage host entries and their service principals",
		Flags:                     append(flags.CommonFlags, flags.DirectoryFlags...),
		DisableSliceFlagSeparator: true,
		Commands: []*cli.Command{
			hostCommand("host-add", "Add a new host", pipeline.KindAdd, flagForce, flagSet, flagAttrs, flagAll),
			hostCommand("host-mod", "Modify a host", pipeline.KindMod, flagSet, flagAttrs, flagAll),
			hostCommand("host-del", "Delete a host and its services", pipeline.KindDel),
			{
				Name:      "host-find",
				Usage:     "Search for hosts",
				ArgsUsage: "[CRITERIA]",
				Flags:     []cli.Flag{flagSet, flagFilter, flagAttrs, flagAll, flagSizeLimit},
				Action: withDirectory(func(cCtx *cli.Context, dir *flags.Directory) error {
					fields, err := parseFields(cCtx.StringSlice(flagSet.Name))
					if err != nil {
						return err
					}
					return run(cCtx, dir, commandName(dir, pipeline.KindFind), pipeline.Request{
						Fields: fields,
						Options: pipeline.Options{
							All:       cCtx.Bool(flagAll.Name),
							Criteria:  cCtx.Args().First(),
							Filter:    cCtx.String(flagFilter.Name),
							Attrs:     flags.SplitList(cCtx.StringSlice(flagAttrs.Name)),
							SizeLimit: cCtx.Int(flagSizeLimit.Name),
						},
					})
				}),
			},
			hostCommand("host-show", "Display a host", pipeline.KindShow, flagAttrs, flagAll),
			hostCommand("host-disable", "Remove the kerberos key of a host", pipeline.KindDisable),
			{
				Name:      "host-getkeytab",
				Usage:     "Generate a new kerberos key for a host",
				ArgsUsage: "HOSTNAME",
				Action: withDirectory(func(cCtx *cli.Context, dir *flags.Directory) error {
					res, err := getKeytab(cCtx.Context, dir, cCtx.Args().First())
					if err != nil {
						return err
					}
					return writeResult(os.Stdout, cCtx.String(flags.OutputFlag.Name), res)
				}),
			},
			{
				Name:      "host-enroll",
				Usage:     "Enroll a host with its one-time password",
				ArgsUsage: "HOSTNAME",
				Flags: []cli.Flag{&cli.StringFlag{
					Name:     "password",
					EnvVars:  []string{"HOSTDIR_ENROLLMENT_PASSWORD"},
					Required: true,
					Usage:    "one-time password set by host-add",
				}},
				Action: withDirectory(func(cCtx *cli.Context, dir *flags.Directory) error {
					res, err := enroll(cCtx.Context, dir, cCtx.Args().First(), cCtx.String("password"))
					if err != nil {
						return err
					}
					return writeResult(os.Stdout, cCtx.String(flags.OutputFlag.Name), res)
				}),
			},
			{
				Name:      "service-add",
				Usage:     "Add a service principal for an existing host",
				ArgsUsage: "SERVICE/HOSTNAME[@REALM]",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "force", Usage: "do not require the host entry to exist"}},
				Action: withDirectory(func(cCtx *cli.Context, dir *flags.Directory) error {
					entry, err := dir.Services.AddService(cCtx.Context, cCtx.Args().First(), dir.Realm, cCtx.Bool("force"))
					if err != nil {
						return err
					}
					principal := entry.Attrs.Get(schema.AttrPrincipal)
					return writeResult(os.Stdout, cCtx.String(flags.OutputFlag.Name), &pipeline.Result{
						Summary: fmt.Sprintf("Added service %q", principal),
						Value:   principal,
						Entry:   pipeline.RecordOf(entry.Attrs),
					})
				}),
			},
			{
				Name:      "service-find",
				Usage:     "List service principals containing a term",
				ArgsUsage: "[TERM]",
				Action: withDirectory(func(cCtx *cli.Context, dir *flags.Directory) error {
					res, err := findServices(cCtx.Context, dir.Services, cCtx.Args().First())
					if err != nil {
						return err
					}
					return writeResult(os.Stdout, cCtx.String(flags.OutputFlag.Name), res)
				}),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var flagSizeLimit = &cli.IntFlag{
	Name:  "limit",
	Usage: "maximum number of hosts to return, 0 uses --sizelimit",
}

// hostCommand builds a command taking the host name as its only argument.
func hostCommand(name, usage string, kind pipeline.Kind, cmdFlags ...cli.Flag) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "HOSTNAME",
		Flags:     cmdFlags,
		Action: withDirectory(func(cCtx *cli.Context, dir *flags.Directory) error {
			if cCtx.NArg() != 1 {
				return &interfaces.ValidationError{Field: "hostname", Reason: "exactly one host name required"}
			}
			fields, err := parseFields(cCtx.StringSlice(flagSet.Name))
			if err != nil {
				return err
			}
			return run(cCtx, dir, commandName(dir, kind), pipeline.Request{
				Key:    cCtx.Args().First(),
				Fields: fields,
				Options: pipeline.Options{
					Force: cCtx.Bool(flagForce.Name),
					All:   cCtx.Bool(flagAll.Name),
					Attrs: flags.SplitList(cCtx.StringSlice(flagAttrs.Name)),
				},
			})
		}),
	}
}

func withDirectory(action func(cCtx *cli.Context, dir *flags.Directory) error) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		logger := flags.SetupLogger(cCtx)
		dir, err := flags.ConfigureDirectory(cCtx, logger)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		if err := action(cCtx, dir); err != nil {
			return cli.Exit(err.Error(), exitCode(err))
		}
		return nil
	}
}

func run(cCtx *cli.Context, dir *flags.Directory, name string, req pipeline.Request) error {
	res, err := dir.Registry.Execute(cCtx.Context, name, req)
	if err != nil {
		return err
	}
	return writeResult(os.Stdout, cCtx.String(flags.OutputFlag.Name), res)
}

func commandName(dir *flags.Directory, kind pipeline.Kind) string {
	return dir.Schema.Name + "_" + string(kind)
}
