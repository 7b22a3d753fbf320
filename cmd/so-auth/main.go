// Command so-auth serves cached site session cookies over HTTP.
package main

import (
	"os"

	"github.com/blankcnvs/so-auth/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
