// Command sigflow-probe reports the runtime identity of the host: OS and
// architecture, CPU topology, memory page size and which acceleration
// backends registered themselves.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/sigflow/sigflow/pkg/platform"
)

func main() {
	jsonOut := flag.Bool("json", false, "Emit JSON instead of text")
	flag.Parse()

	info := platform.Probe()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to marshal probe result: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		return
	}

	fmt.Printf("os:         %s\n", info.OS)
	fmt.Printf("arch:       %s\n", info.Arch)
	fmt.Printf("go:         %s\n", info.GoVersion)
	fmt.Printf("cpus:       %d\n", info.NumCPU)
	fmt.Printf("page size:  %d\n", info.PageSize)
	if len(info.Features) == 0 {
		fmt.Println("features:   none detected")
		return
	}
	fmt.Println("features:")
	for _, name := range platform.FeatureNames() {
		fmt.Printf("  %s\n", name)
	}
}
