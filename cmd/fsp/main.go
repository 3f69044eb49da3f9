// Command fsp is the flexible-snapshot-proxy CLI: a sharded, retrying
// client over the Block API for moving snapshot content between the
// snapshot service, local files, and an object-store archive.
package main

import (
	"os"

	"github.com/awslabs/flexible-snapshot-proxy/cmd/fsp/commands"
)

func main() {
	os.Exit(commands.Execute())
}
