// Command adl2vgm converts Coktel Vision AdLib music into VGM files: a
// single ADL song, a MDY+TBR melody/timbre pair, or an entire game
// directory crawled for every song it can find.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/DrMcCoy/cokteladl2vgm/convert"
)

const (
	toolName    = "cokteladl2vgm"
	toolVersion = "0.3.0"
)

var (
	statusColor  = color.New(color.FgGreen).SprintfFunc()
	warningColor = color.New(color.FgYellow).SprintfFunc()
	errorColor   = color.New(color.FgRed).SprintfFunc()
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet(toolName, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	help := fs.Bool("h", false, "Display this text and exit.")
	fs.BoolVar(help, "help", false, "Display this text and exit.")
	version := fs.Bool("v", false, "Display version information and exit.")
	fs.BoolVar(version, "version", false, "Display version information and exit.")
	fs.Usage = func() { printUsage(fs) }

	if err := fs.Parse(args); err != nil {
		return -1
	}

	switch {
	case *help:
		printUsage(fs)
		return 0
	case *version:
		printVersion()
		return 0
	}

	files := fs.Args()

	var directory string
	for _, f := range files {
		if isDirectory(f) {
			directory = f
			break
		}
	}

	switch {
	case directory != "":
		if len(files) != 1 {
			printUsage(fs)
			return -1
		}
		return runCrawl(directory)

	case len(files) == 1:
		return runADL(files[0])

	case len(files) == 2:
		return runMDY(files[0], files[1])

	default:
		printUsage(fs)
		return -1
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, "%s - Tool to convert Coktel Vision's AdLib music to VGM\n", toolName)
	fmt.Fprintf(os.Stderr, "Usage: %s [options] <file.adl>\n", toolName)
	fmt.Fprintf(os.Stderr, "       %s [options] <file.mdy> <file.tbr>\n", toolName)
	fmt.Fprintf(os.Stderr, "       %s [options] </path/to/coktel/game/>\n\n", toolName)
	fs.PrintDefaults()
}

func printVersion() {
	fmt.Printf("%s %s\n", toolName, toolVersion)
}

func isDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func status(format string, args ...any) {
	fmt.Println(statusColor(format, args...))
}

func warn(format string, args ...any) {
	fmt.Fprintln(os.Stderr, warningColor("WARNING: "+format, args...))
}

func fail(err error) int {
	fmt.Fprintln(os.Stderr, errorColor("ERROR: %s", err))
	return -2
}

func writeVGM(name string, data []byte) error {
	return os.WriteFile(name, data, 0o644)
}

func runADL(path string) int {
	status("Converting ADL %q to VGM...", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(err)
	}

	vgmData, err := convert.ADL(data)
	if err != nil {
		return fail(err)
	}

	outName := convert.BaseName(path) + ".vgm"
	if err := writeVGM(outName, vgmData); err != nil {
		return fail(err)
	}

	return 0
}

func runMDY(mdyPath, tbrPath string) int {
	status("Converting MDY %q with TBR %q to VGM...", mdyPath, tbrPath)

	mdyData, err := os.ReadFile(mdyPath)
	if err != nil {
		return fail(err)
	}
	tbrData, err := os.ReadFile(tbrPath)
	if err != nil {
		return fail(err)
	}

	vgmData, err := convert.MUS(mdyData, tbrData)
	if err != nil {
		return fail(err)
	}

	outName := convert.BaseName(mdyPath) + ".vgm"
	if err := writeVGM(outName, vgmData); err != nil {
		return fail(err)
	}

	return 0
}

func runCrawl(path string) int {
	status("Crawling through game directory %q...", path)

	outputs, warnings := convert.CrawlDirectory(path)
	for _, w := range warnings {
		warn("%s", w)
	}

	if outputs == nil && len(warnings) > 0 {
		return fail(fmt.Errorf("could not scan %q", path))
	}

	for _, out := range outputs {
		name := filepath.Base(out.Name)
		if err := writeVGM(name, out.VGM); err != nil {
			warn("writing %q: %s", name, err)
			continue
		}
		status("Wrote %q", name)
	}

	return 0
}
