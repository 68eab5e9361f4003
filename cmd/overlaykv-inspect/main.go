// Command overlaykv-inspect is a small demo/debugging tool for the
// overlaykv engine: it replays a script of volume/mount operations and
// prints the resulting overlay reads, or runs a canned scenario with the
// demo subcommand.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jbkvs/overlaykv"
	"github.com/jbkvs/overlaykv/internal/log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "overlaykv-inspect",
	Short: "Replay and inspect overlaykv volume/mount scripts",
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(demoCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: level, JSON: jsonOut})
}

var runCmd = &cobra.Command{
	Use:   "run SCRIPT",
	Short: "Execute a volume/mount script and print every get's result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open script: %w", err)
		}
		defer f.Close()

		e := newEngine()
		scanner := bufio.NewScanner(f)
		for lineNum := 1; scanner.Scan(); lineNum++ {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if err := e.exec(line); err != nil {
				return fmt.Errorf("line %d: %w", lineNum, err)
			}
		}
		return scanner.Err()
	},
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a canned priority-overlay scenario and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEngine()
		script := []string{
			"volume base",
			"volume override",
			"put base 1 string base-value",
			"put override 1 string override-value",
			"mount /app base",
			"mount /app override",
			"get /app 1 string",
			"unmount /app override",
			"get /app 1 string",
		}
		for _, line := range script {
			log.Logger.Debug().Str("line", line).Msg("exec")
			if err := e.exec(line); err != nil {
				return err
			}
		}
		return nil
	},
}

// engine tracks named volumes by the identifiers a script uses to refer
// to them, and the one Storage the script mounts them into.
type engine struct {
	storage *overlaykv.Storage
	volumes map[string]*overlaykv.VolumeNode
}

func newEngine() *engine {
	return &engine{
		storage: overlaykv.NewStorage(),
		volumes: make(map[string]*overlaykv.VolumeNode),
	}
}

// exec dispatches one script line. Supported forms:
//
//	volume NAME
//	child PARENT NAME CHILD
//	put VOLUME KEY TYPE VALUE
//	mount PATH VOLUME
//	unmount PATH VOLUME
//	get PATH KEY TYPE
func (e *engine) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "volume":
		if len(fields) != 2 {
			return fmt.Errorf("volume NAME")
		}
		if _, exists := e.volumes[fields[1]]; exists {
			return fmt.Errorf("volume %q already defined", fields[1])
		}
		e.volumes[fields[1]] = overlaykv.NewVolumeRoot()
		return nil

	case "child":
		if len(fields) != 4 {
			return fmt.Errorf("child PARENT NAME CHILD")
		}
		parent, ok := e.volumes[fields[1]]
		if !ok {
			return fmt.Errorf("unknown volume %q", fields[1])
		}
		child, err := overlaykv.NewVolumeChild(parent, fields[2])
		if err != nil {
			return err
		}
		e.volumes[fields[3]] = child
		return nil

	case "put":
		if len(fields) != 5 {
			return fmt.Errorf("put VOLUME KEY TYPE VALUE")
		}
		v, ok := e.volumes[fields[1]]
		if !ok {
			return fmt.Errorf("unknown volume %q", fields[1])
		}
		key, err := parseKey(fields[2])
		if err != nil {
			return err
		}
		return putTyped(v, key, fields[3], fields[4])

	case "mount":
		if len(fields) != 3 {
			return fmt.Errorf("mount PATH VOLUME")
		}
		v, ok := e.volumes[fields[2]]
		if !ok {
			return fmt.Errorf("unknown volume %q", fields[2])
		}
		if !e.storage.Mount(fields[1], v) {
			return fmt.Errorf("mount %s %s failed", fields[1], fields[2])
		}
		log.Logger.Info().Str("path", fields[1]).Str("volume", fields[2]).Msg("mounted")
		return nil

	case "unmount":
		if len(fields) != 3 {
			return fmt.Errorf("unmount PATH VOLUME")
		}
		v, ok := e.volumes[fields[2]]
		if !ok {
			return fmt.Errorf("unknown volume %q", fields[2])
		}
		if !e.storage.Unmount(fields[1], v) {
			return fmt.Errorf("unmount %s %s failed", fields[1], fields[2])
		}
		log.Logger.Info().Str("path", fields[1]).Str("volume", fields[2]).Msg("unmounted")
		return nil

	case "get":
		if len(fields) != 4 {
			return fmt.Errorf("get PATH KEY TYPE")
		}
		node := e.storage.GetNode(fields[1])
		if node == nil {
			fmt.Printf("%s %s: <no such node>\n", fields[1], fields[2])
			return nil
		}
		key, err := parseKey(fields[2])
		if err != nil {
			return err
		}
		return printTyped(node, key, fields[1], fields[3])

	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}

func parseKey(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad key %q: %w", s, err)
	}
	return uint32(n), nil
}

func putTyped(v *overlaykv.VolumeNode, key uint32, typ, raw string) error {
	switch typ {
	case "uint32":
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return err
		}
		overlaykv.Put[uint32](v, key, uint32(n))
	case "uint64":
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return err
		}
		overlaykv.Put[uint64](v, key, n)
	case "float32":
		n, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return err
		}
		overlaykv.Put[float32](v, key, float32(n))
	case "float64":
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		overlaykv.Put[float64](v, key, n)
	case "string":
		overlaykv.Put[string](v, key, raw)
	default:
		return fmt.Errorf("unsupported type %q", typ)
	}
	return nil
}

func printTyped(node *overlaykv.StorageNode, key uint32, path, typ string) error {
	switch typ {
	case "uint32":
		v, ok := overlaykv.StorageGet[uint32](node, key)
		report(path, key, v, ok)
	case "uint64":
		v, ok := overlaykv.StorageGet[uint64](node, key)
		report(path, key, v, ok)
	case "float32":
		v, ok := overlaykv.StorageGet[float32](node, key)
		report(path, key, v, ok)
	case "float64":
		v, ok := overlaykv.StorageGet[float64](node, key)
		report(path, key, v, ok)
	case "string":
		v, ok := overlaykv.StorageGet[string](node, key)
		report(path, key, v, ok)
	default:
		return fmt.Errorf("unsupported type %q", typ)
	}
	return nil
}

func report[T any](path string, key uint32, v T, ok bool) {
	if !ok {
		fmt.Printf("%s %d: <miss>\n", path, key)
		return
	}
	fmt.Printf("%s %d: %v\n", path, key, v)
}
