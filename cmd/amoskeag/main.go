// Command amoskeag compiles and evaluates Amoskeag expressions from the
// command line, using an engine module supplied as a WebAssembly file.
//
// Usage:
//
//	amoskeag eval "x + y" --data '{"x": 2, "y": 3}' --symbols x,y
//	amoskeag check "price * quantity" --symbols price,quantity
//	amoskeag repl
//
// The engine module is located through --engine or the AMOSKEAG_WASM
// environment variable.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/durable-oss/amoskeag"
)

var (
	enginePath string
	dataArg    string
	symbols    []string
	compact    bool
)

func main() {
	root := &cobra.Command{
		Use:           "amoskeag",
		Short:         "Evaluate Amoskeag expressions against JSON data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&enginePath, "engine", os.Getenv("AMOSKEAG_WASM"),
		"path to the engine WebAssembly module")

	evalCmd := &cobra.Command{
		Use:   "eval EXPRESSION",
		Short: "Compile and evaluate an expression",
		Args:  cobra.ExactArgs(1),
		RunE:  runEval,
	}
	evalCmd.Flags().StringVarP(&dataArg, "data", "d", "{}",
		"data context: inline JSON object or @file")
	evalCmd.Flags().StringSliceVarP(&symbols, "symbols", "s", nil,
		"symbol names the expression may reference")
	evalCmd.Flags().BoolVar(&compact, "compact", false, "one-line JSON output")

	checkCmd := &cobra.Command{
		Use:   "check EXPRESSION",
		Short: "Compile an expression without evaluating it",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}
	checkCmd.Flags().StringSliceVarP(&symbols, "symbols", "s", nil,
		"symbol names the expression may reference")

	replCmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactively evaluate expressions against a mutable data context",
		Args:  cobra.NoArgs,
		RunE:  runRepl,
	}

	root.AddCommand(evalCmd, checkCmd, replCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "amoskeag:", err)
		os.Exit(1)
	}
}

func loadBinding(cmd *cobra.Command) (*amoskeag.Amoskeag, error) {
	if enginePath == "" {
		return nil, errors.New("no engine module: pass --engine or set AMOSKEAG_WASM")
	}
	wasm, err := os.ReadFile(enginePath)
	if err != nil {
		return nil, fmt.Errorf("cannot read engine module: %w", err)
	}
	return amoskeag.New(cmd.Context(), wasm)
}

func runEval(cmd *cobra.Command, args []string) error {
	ask, err := loadBinding(cmd)
	if err != nil {
		return err
	}
	defer ask.Close(cmd.Context())

	data, err := parseData(dataArg)
	if err != nil {
		return err
	}
	result, err := ask.EvalExpression(cmd.Context(), args[0], data, symbols)
	if err != nil {
		return err
	}

	var out []byte
	if compact {
		out, err = json.Marshal(result)
	} else {
		out, err = json.MarshalIndent(result, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("cannot render result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	ask, err := loadBinding(cmd)
	if err != nil {
		return err
	}
	defer ask.Close(cmd.Context())

	prog, err := ask.Compile(cmd.Context(), args[0], symbols)
	if err != nil {
		return err
	}
	defer prog.Close()
	fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}

// maxReplInput caps a single REPL line.
const maxReplInput = 10000

func runRepl(cmd *cobra.Command, _ []string) error {
	ask, err := loadBinding(cmd)
	if err != nil {
		return err
	}
	defer ask.Close(cmd.Context())

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(out, "Amoskeag REPL %s\n", amoskeag.Version())
	fmt.Fprintln(out, "Type 'exit' or 'quit' to exit, 'help' for help")
	fmt.Fprintln(out)

	data := map[string]any{}
	sc := bufio.NewScanner(cmd.InOrStdin())
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if len(line) > maxReplInput {
			fmt.Fprintf(errOut, "error: input too long (max %d characters)\n", maxReplInput)
			continue
		}

		switch line {
		case "exit", "quit":
			return nil
		case "help":
			printReplHelp(out)
			continue
		case "clear":
			data = map[string]any{}
			fmt.Fprintln(out, "Data context cleared")
			continue
		case "data":
			printReplData(out, data)
			continue
		}
		if rest, ok := strings.CutPrefix(line, "set "); ok {
			setReplValue(errOut, data, rest)
			continue
		}

		names := make([]string, 0, len(data))
		for k := range data {
			names = append(names, k)
		}
		sort.Strings(names)
		result, err := ask.EvalExpression(cmd.Context(), line, data, names)
		if err != nil {
			fmt.Fprintln(errOut, "error:", err)
			continue
		}
		rendered, err := json.Marshal(result)
		if err != nil {
			fmt.Fprintln(errOut, "error:", err)
			continue
		}
		fmt.Fprintln(out, string(rendered))
	}
}

func printReplHelp(out io.Writer) {
	fmt.Fprintln(out, "REPL commands:")
	fmt.Fprintln(out, "  exit, quit     - Exit the REPL")
	fmt.Fprintln(out, "  help           - Show this help message")
	fmt.Fprintln(out, "  clear          - Clear the data context")
	fmt.Fprintln(out, "  data           - Show current data context")
	fmt.Fprintln(out, "  set KEY VALUE  - Set a data value (VALUE is JSON)")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Anything else is evaluated as an Amoskeag expression.")
}

func printReplData(out io.Writer, data map[string]any) {
	if len(data) == 0 {
		fmt.Fprintln(out, "(empty)")
		return
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rendered, err := json.Marshal(data[k])
		if err != nil {
			rendered = []byte(fmt.Sprintf("%v", data[k]))
		}
		fmt.Fprintf(out, "  %s: %s\n", k, rendered)
	}
}

func setReplValue(errOut io.Writer, data map[string]any, rest string) {
	key, rawVal, ok := strings.Cut(rest, " ")
	key = strings.TrimSpace(key)
	rawVal = strings.TrimSpace(rawVal)
	if !ok || key == "" || rawVal == "" {
		fmt.Fprintln(errOut, "usage: set KEY VALUE (VALUE is JSON)")
		return
	}
	val, err := parseData(rawVal)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return
	}
	data[key] = val
}

// parseData reads the --data argument: a leading @ names a JSON file,
// anything else is inline JSON. Numbers are kept as json.Number so integer
// inputs stay integers across the boundary.
func parseData(arg string) (any, error) {
	text := []byte(arg)
	if strings.HasPrefix(arg, "@") {
		var err error
		text, err = os.ReadFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("cannot read data file: %w", err)
		}
	}
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("invalid data JSON: %w", err)
	}
	return data, nil
}
