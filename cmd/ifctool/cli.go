package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"ifc-service/internal/conversion"
	"ifc-service/internal/marker"
	"ifc-service/internal/objtag"
)

// newCLIApp creates the CLI application with all commands. Command output is written to out.
func newCLIApp(out io.Writer) *cli.App {
	app := &cli.App{
		Name:    "ifctool",
		Usage:   "Convert IFC models to tagged OBJ meshes and work with QR marker payloads",
		Version: Version,
		Writer:  out,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Log pipeline progress to stderr"},
		},
		Commands: []*cli.Command{
			convertCmd(out),
			tagCmd(out),
			listCmd(out),
			renameCmd(out),
			markerCmd(out),
		},
	}
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func newLogger(c *cli.Context) *zap.Logger {
	if !c.Bool("verbose") {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// convertCmd runs the full pipeline for one stem.
func convertCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Convert {stem}.ifc in the artifact directory to a tagged {stem}.obj",
		ArgsUsage: "<stem>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "artifact-dir", Aliases: []string{"d"}, Value: ".", EnvVars: []string{"ARTIFACT_DIR"}, Usage: "Directory holding the artifacts"},
			&cli.StringFlag{Name: "work-dir", EnvVars: []string{"WORK_DIR"}, Usage: "Converter scratch directory (defaults to the artifact directory)"},
			&cli.StringFlag{Name: "ifcconvert", Value: "IfcConvert", EnvVars: []string{"IFCCONVERT_PATH"}, Usage: "IfcConvert binary"},
			&cli.StringFlag{Name: "blender", Value: "blender", EnvVars: []string{"BLENDER_PATH"}, Usage: "Blender binary"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("convert needs exactly one stem", 2)
			}
			workDir := c.String("work-dir")
			if workDir == "" {
				workDir = c.String("artifact-dir")
			}
			logger := newLogger(c)
			defer logger.Sync()

			pipeline, err := conversion.NewPipeline(conversion.Config{
				ConverterPath: c.String("ifcconvert"),
				ModelerPath:   c.String("blender"),
				ArtifactDir:   c.String("artifact-dir"),
				WorkDir:       workDir,
			}, logger)
			if err != nil {
				return outputError(err)
			}

			stem := strings.TrimSuffix(c.Args().First(), conversion.ExtIFC)
			result, err := pipeline.Run(c.Context, stem)
			if err != nil {
				if result != nil && result.Stderr != "" {
					fmt.Fprint(c.App.ErrWriter, result.Stderr)
				}
				return outputError(err)
			}
			return outputJSON(out, result)
		},
	}
}

// tagCmd tags the object declarations of an OBJ file.
func tagCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "tag",
		Usage:     "Append identifier tags to every object declaration of an OBJ file",
		ArgsUsage: "<file.obj>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("tag needs exactly one file", 2)
			}
			n, err := objtag.Tag(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out, map[string]int{"object_count": n})
		},
	}
}

// listCmd prints the tagged objects of an OBJ file.
func listCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List the tagged objects of an OBJ file",
		ArgsUsage: "<file.obj>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("list needs exactly one file", 2)
			}
			objects, err := objtag.List(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out, objects)
		},
	}
}

// renameCmd renames tagged objects, one ID=NAME argument per object.
func renameCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "rename",
		Usage:     "Rename tagged objects of an OBJ file",
		ArgsUsage: "<file.obj> <id=name>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "strict", EnvVars: []string{"RENAME_STRICT"}, Usage: "Fail without writing when an id is not present"},
			&cli.BoolFlag{Name: "preserve-tags", EnvVars: []string{"RENAME_PRESERVE_TAGS"}, Usage: "Keep the tag on renamed objects"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return cli.Exit("rename needs a file and at least one id=name pair", 2)
			}
			updates, err := parseUpdates(c.Args().Tail())
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			report, err := objtag.Rewrite(c.Args().First(), updates, objtag.RewriteOptions{
				Strict:       c.Bool("strict"),
				PreserveTags: c.Bool("preserve-tags"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out, report)
		},
	}
}

// markerCmd groups the QR payload subcommands.
func markerCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "marker",
		Usage: "Encode or decode QR marker payloads",
		Subcommands: []*cli.Command{
			{
				Name:  "encode",
				Usage: "Print the QR payload for a marker placement",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "building", Aliases: []string{"b"}, Required: true},
					&cli.StringFlag{Name: "room", Aliases: []string{"r"}, Required: true},
					&cli.Float64Flag{Name: "x"},
					&cli.Float64Flag{Name: "y"},
					&cli.Float64Flag{Name: "z"},
					&cli.Float64Flag{Name: "yrot", Usage: "Rotation around the vertical axis in degrees"},
					&cli.StringFlag{Name: "file-ref", Aliases: []string{"f"}, Required: true, Usage: "Download URL of the model"},
				},
				Action: func(c *cli.Context) error {
					payload, err := marker.Encode(marker.Payload{
						Building:      c.String("building"),
						Room:          c.String("room"),
						X:             c.Float64("x"),
						Y:             c.Float64("y"),
						Z:             c.Float64("z"),
						YRot:          c.Float64("yrot"),
						FileReference: c.String("file-ref"),
					})
					if err != nil {
						return outputError(err)
					}
					_, err = fmt.Fprintln(out, payload)
					return err
				},
			},
			{
				Name:      "decode",
				Usage:     "Decode a scanned QR payload",
				ArgsUsage: "<payload>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("decode needs exactly one payload", 2)
					}
					p, err := marker.Decode(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(out, p)
				},
			},
		},
	}
}

// Helper functions

// outputJSON writes v as indented JSON.
func outputJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats err for the CLI, prefixing the failure kind when known.
func outputError(err error) error {
	if kind := conversion.KindOf(err); kind != "" {
		return cli.Exit(fmt.Sprintf("[%s] %s", kind, err.Error()), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseUpdates turns "7=Wall" arguments into updates.
func parseUpdates(args []string) ([]objtag.Update, error) {
	updates := make([]objtag.Update, 0, len(args))
	for _, arg := range args {
		idText, name, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid update %q: want id=name", arg)
		}
		id, err := strconv.Atoi(strings.TrimSpace(idText))
		if err != nil {
			return nil, fmt.Errorf("invalid update %q: id must be an integer", arg)
		}
		u := objtag.Update{ID: id, Name: name}
		if err := u.Validate(); err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, nil
}
