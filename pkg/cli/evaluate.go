package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/maestro-orchestra/pkg/core"
	"github.com/devicelab-dev/maestro-orchestra/pkg/driver/mock"
	"github.com/devicelab-dev/maestro-orchestra/pkg/executor"
	"github.com/devicelab-dev/maestro-orchestra/pkg/flow"
)

var evaluateCommand = &cli.Command{
	Name:      "evaluate",
	Usage:     "Print the commands of a flow with variables substituted",
	ArgsUsage: "<flow-file>",
	Description: `Compile a flow, run its env definitions and print every command in
its evaluated form. Nothing is executed on the device.

Examples:
  maestro-orchestra evaluate login.yaml
  maestro-orchestra evaluate login.yaml -e USER=test`,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Environment variables (KEY=VALUE)",
		},
	},
	Action: runEvaluate,
}

var hierarchyCommand = &cli.Command{
	Name:  "hierarchy",
	Usage: "Print the view hierarchy served by the device",
	Description: `Print the view hierarchy of the simulated device in JSON or CSV format.

Examples:
  maestro-orchestra --hierarchy screen.json hierarchy
  maestro-orchestra --hierarchy screen.json hierarchy --compact`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "compact",
			Usage: "Output in CSV format",
		},
	},
	Action: runHierarchy,
}

func runEvaluate(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one flow file is required")
	}
	ws := workspaceConfig(c)

	f, err := flow.ParseFile(c.Args().First())
	if err != nil {
		return err
	}

	env := make(map[string]string)
	for k, v := range ws.Env {
		env[k] = v
	}
	for k, v := range parseEnvVars(c.StringSlice("env")) {
		env[k] = v
	}

	d := mock.New(mock.Config{Platform: ws.Platform, DeviceID: ws.Device})
	o := executor.New(d, executor.Callbacks{}, executor.Options{
		Env: executor.FlowEnv(env, executor.Shard{DeviceID: d.Config.DeviceID}, f),
	})
	defer o.Close()

	cmds, err := o.EvaluateCommands(c.Context, f.Commands)
	if err != nil {
		return err
	}
	printEvaluated(c.App.Writer, cmds, 0)
	return nil
}

// printEvaluated lists visible commands, nesting composite bodies. Bodies
// are shown as compiled since they are evaluated only when dispatched.
func printEvaluated(w io.Writer, cmds []flow.Command, depth int) {
	n := 0
	for _, cmd := range cmds {
		if !flow.IsVisible(cmd) {
			continue
		}
		n++
		fmt.Fprintf(w, "%s%d. %s\n", strings.Repeat("  ", depth+1), n, flow.Description(cmd))
		if comp, ok := cmd.(flow.Composite); ok {
			printEvaluated(w, comp.SubCommands(), depth+1)
		}
	}
}

func runHierarchy(c *cli.Context) error {
	path := c.String("hierarchy")
	if path == "" {
		return fmt.Errorf("--hierarchy is required")
	}
	root, err := mock.LoadHierarchy(path)
	if err != nil {
		return err
	}

	if c.Bool("compact") {
		return writeHierarchyCSV(c.App.Writer, root)
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(root)
}

// writeHierarchyCSV writes one row per node: depth, then every attribute
// that appears anywhere in the tree.
func writeHierarchyCSV(w io.Writer, root *core.TreeNode) error {
	keys := map[string]bool{}
	var collect func(n *core.TreeNode)
	collect = func(n *core.TreeNode) {
		for k := range n.Attributes {
			keys[k] = true
		}
		for _, child := range n.Children {
			collect(child)
		}
	}
	collect(root)

	header := make([]string, 0, len(keys))
	for k := range keys {
		header = append(header, k)
	}
	sort.Strings(header)

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"depth"}, header...)); err != nil {
		return err
	}

	var walk func(n *core.TreeNode, depth int) error
	walk = func(n *core.TreeNode, depth int) error {
		row := []string{strconv.Itoa(depth)}
		for _, k := range header {
			row = append(row, n.Attributes[k])
		}
		if err := cw.Write(row); err != nil {
			return err
		}
		for _, child := range n.Children {
			if err := walk(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root, 0); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
