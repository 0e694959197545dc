package ctl

import (
	"fmt"
	"runtime"

	"github.com/large-farva/vtol-groundstation/internal/build"
)

// VersionInfo prints the CLI's build information.
func VersionInfo(jsonOutput bool) error {
	info := map[string]string{
		"version":    build.Version,
		"go_version": build.GoVersion(),
		"built_at":   build.BuiltAt,
		"platform":   runtime.GOOS + "/" + runtime.GOARCH,
	}
	if jsonOutput {
		return printJSON(info)
	}

	fmt.Println()
	fmt.Println(header("  FCCTL"))
	fmt.Printf("  %-12s %s\n", colorize(dim, "Version:"), info["version"])
	fmt.Printf("  %-12s %s\n", colorize(dim, "Go:"), info["go_version"])
	fmt.Printf("  %-12s %s\n", colorize(dim, "Built:"), info["built_at"])
	fmt.Printf("  %-12s %s\n", colorize(dim, "Platform:"), info["platform"])
	fmt.Println()
	return nil
}
