// Command floatq answers natural-language questions about ARGO float data.
package main

import (
	"fmt"
	"os"

	"github.com/Abuzaid-01/Float-Chat/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
