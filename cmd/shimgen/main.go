package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/hostshim/emit"
	"github.com/wippyai/hostshim/schema"
	"github.com/wippyai/hostshim/shim"
)

func main() {
	var (
		list        = flag.Bool("list", false, "List interface functions and exit")
		emitOut     = flag.String("emit", "", "Emit Go bindings to a file (- for stdout)")
		pkg         = flag.String("pkg", "bindings", "Package name for emitted bindings")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Debug logging on stderr")
	)
	flag.Parse()

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		shim.SetLogger(logger)
	}

	if !*list && *emitOut == "" && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: shimgen -list")
		fmt.Fprintln(os.Stderr, "       shimgen -emit <file.go|-> [-pkg name]")
		fmt.Fprintln(os.Stderr, "       shimgen -i  (interactive mode)")
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*list, *emitOut, *pkg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(list bool, emitOut, pkg string) error {
	fns := sampleFuncs()

	if list {
		printFuncs(fns)
	}

	if emitOut != "" {
		src, err := emit.NewGo(pkg).Emit("kvstore", fns)
		if err != nil {
			return fmt.Errorf("emit: %w", err)
		}
		if emitOut == "-" {
			_, err = os.Stdout.Write(src)
			return err
		}
		if err := os.WriteFile(emitOut, src, 0o644); err != nil {
			return fmt.Errorf("write bindings: %w", err)
		}
		fmt.Printf("Wrote %s (%d bytes)\n", emitOut, len(src))
	}

	return nil
}

func printFuncs(fns []*schema.Func) {
	styled := term.IsTerminal(int(os.Stdout.Fd()))

	fmt.Printf("Interface: kvstore\n")
	fmt.Printf("Functions: %d\n\n", len(fns))
	for _, fn := range fns {
		sig := fn.Signature()
		if styled {
			sig = funcStyle.Render(sig)
		}
		fmt.Printf("  %s\n", sig)
		fmt.Printf("    %s\n", flatLayout(fn))
	}
}

// flatLayout describes the ABI word layout of one function.
func flatLayout(fn *schema.Func) string {
	var parts []string
	for _, p := range fn.Params {
		if p.Shape.FlatCount() == 2 {
			parts = append(parts, p.Name+".ptr", p.Name+".len")
			continue
		}
		parts = append(parts, p.Name)
	}
	for _, r := range fn.Extras() {
		parts = append(parts, r.Name+".out")
	}
	ret := "void"
	if fn.HasReturn() {
		ret = fn.Results[0].Name
	}
	if fn.NoReturn {
		ret = "trap"
	}
	return fmt.Sprintf("abi: [%s] -> %s", strings.Join(parts, " "), ret)
}

var funcStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#98FB98"))
