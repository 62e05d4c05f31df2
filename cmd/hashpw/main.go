// hashpw prints the bcrypt hash for ADMIN_PASSWORD_HASH. Run it once when
// provisioning a deployment:
//
//	go run ./cmd/hashpw 'the-admin-password'
package main

import (
	"fmt"
	"os"

	"github.com/codelabx/regdesk/internal/security"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: hashpw <password>")
		os.Exit(2)
	}

	hash, err := security.HashPassword(os.Args[1])

	if err != nil {
		fmt.Fprintln(os.Stderr, "hash failed:", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
